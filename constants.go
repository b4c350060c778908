package mimebundle

// Wire mimetype constants. Remote clients match on these strings
// literally; changing one is a breaking protocol change.
const (
	// ColumnarMimetype identifies Arrow IPC stream payloads carrying
	// tables and columns.
	ColumnarMimetype = "application/vnd.apache.arrow.stream"

	// ColumnarFileMimetype identifies Arrow IPC file payloads. Reserved
	// for clients that persist payloads; not registered by default.
	ColumnarFileMimetype = "application/vnd.apache.arrow.file"

	// FallbackMimetype identifies object-graph payloads produced by the
	// generic fallback codec.
	FallbackMimetype = "application/vnd.go-objgraph"
)
