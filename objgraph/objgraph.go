// Package objgraph is a byte-stream serializer for arbitrary Go values
// that preserves the object graph: concrete container types survive a
// round trip, shared references decode to shared references, and cyclic
// values decode to cycles rather than infinite expansions.
//
// A value is flattened into a table of types and a table of nodes, with
// pointers, maps, and slices deduplicated by identity so that a value
// containing a reference to itself encodes as a finite graph. The tables
// are wire-encoded with MessagePack. The payload is self-describing:
// decoding needs no out-of-band type information.
//
// Named types must be registered before use, in the manner of
// gob.Register:
//
//	type Point struct{ X, Y int }
//	objgraph.Register[Point]()
//
// Unregistered named types fail encoding with ErrUnregistered; this is
// deliberate, so a payload never silently decays to an anonymous shape
// the receiver cannot reverse.
//
// Supported kinds: booleans, integers, unsigned integers, floats,
// strings, []byte, time.Time, slices, arrays, maps, pointers, structs
// (exported fields), and values of any of these held in empty
// interfaces. Channels, functions, complex numbers, and non-empty
// interface element types are not serializable and fail with
// ErrUnsupported.
package objgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrUnsupported indicates a value kind the serializer cannot encode.
	ErrUnsupported = errors.New("unsupported kind")

	// ErrUnregistered indicates a named type that was never registered.
	ErrUnregistered = errors.New("type not registered")

	// ErrCorrupt indicates a byte stream that does not parse as an
	// encoded object graph.
	ErrCorrupt = errors.New("corrupt object graph")
)

// TypeError wraps a sentinel error with the runtime type that caused it.
type TypeError struct {
	Err      error  // Underlying sentinel error (ErrUnsupported, ErrUnregistered)
	TypeName string // Runtime type that triggered the error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.TypeName)
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

// kind tags a wire type table entry.
type kind uint8

const (
	kindNil    kind = iota // typeless nil (empty interface holding nothing)
	kindScalar             // predeclared scalar; Name holds the type name
	kindBytes              // []byte
	kindTime               // time.Time
	kindSlice              // Elem
	kindArray              // Elem, Len
	kindMap                // Key, Elem
	kindPointer            // Elem
	kindAny                // empty interface
	kindNamed              // registered named type; Name holds the registered name
)

// wireType is one entry in the payload's type table. Composite types
// reference other entries by index.
type wireType struct {
	Kind kind   `msgpack:"k"`
	Name string `msgpack:"n,omitempty"`
	Elem int32  `msgpack:"e,omitempty"`
	Key  int32  `msgpack:"y,omitempty"`
	Len  int    `msgpack:"l,omitempty"`
}

// wireNode is one value in the payload's node table. Scalar carries
// primitive payloads; Elems/Keys reference other nodes by index, which is
// what makes shared and cyclic references representable.
type wireNode struct {
	Type   int32    `msgpack:"t"`
	Nil    bool     `msgpack:"z,omitempty"`
	Scalar any      `msgpack:"s,omitempty"`
	Elems  []int32  `msgpack:"e,omitempty"`
	Keys   []int32  `msgpack:"y,omitempty"`
	Fields []string `msgpack:"f,omitempty"`
}

// wireGraph is the full payload: type table, node table, root node.
type wireGraph struct {
	Types []wireType `msgpack:"types"`
	Nodes []wireNode `msgpack:"nodes"`
	Root  int32      `msgpack:"root"`
}
