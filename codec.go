package mimebundle

import (
	"github.com/datalayer/mimebundle/objgraph"
)

// Codec provides mimetype-aware binary encoding for runtime values.
type Codec interface {
	// Mimetype returns the wire mimetype this codec produces.
	Mimetype() string

	// Encode serializes v into the codec's binary format.
	Encode(v any) ([]byte, error)

	// Decode reconstructs a value from data. The TypeKey recorded at
	// encode time lets codecs that serve several concrete types pick the
	// right variant; self-describing codecs may ignore it.
	Decode(data []byte, key TypeKey) (any, error)
}

// DecodeFunc reverses an encoding for one concrete type. Registered as a
// decode hook, it takes precedence over the codec's default Decode.
type DecodeFunc func(data []byte, key TypeKey) (any, error)

// fallbackCodec adapts the objgraph serializer as the registry's
// built-in generic codec. The payload is self-describing, so the type
// key is not needed on decode.
type fallbackCodec struct{}

func (fallbackCodec) Mimetype() string { return FallbackMimetype }

func (fallbackCodec) Encode(v any) ([]byte, error) {
	return objgraph.Encode(v)
}

func (fallbackCodec) Decode(data []byte, _ TypeKey) (any, error) {
	return objgraph.Decode(data)
}
