package mimebundle

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
//
// ErrSerialize, ErrDeserialize, and ErrNoData carry the exact message
// fragments remote clients match on; do not reword them.
var (
	// ErrUnsupportedType indicates a value the selected codec cannot encode.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSerialize indicates the selected codec's encode step failed.
	ErrSerialize = errors.New("Serialization failed")

	// ErrDeserialize indicates payload text or bytes that could not be
	// decoded.
	ErrDeserialize = errors.New("Deserialization failed")

	// ErrCorruptPayload indicates bytes that do not parse as the expected
	// binary container.
	ErrCorruptPayload = errors.New("corrupt payload")

	// ErrUnsupportedMimetype indicates a mimetype no registry entry covers.
	ErrUnsupportedMimetype = errors.New("unsupported mimetype")

	// ErrInvalidMetadata indicates envelope metadata whose type record is
	// missing or malformed.
	ErrInvalidMetadata = errors.New("invalid type metadata")

	// ErrNoData indicates an envelope with no decodable mimetype at all.
	ErrNoData = errors.New("no valid deserialization data found")

	// ErrUnknownVariable indicates a variable name absent from the scope.
	ErrUnknownVariable = errors.New("unknown variable")
)

// CodecError represents an encode or decode failure.
// It wraps a sentinel error with the mimetype involved and the original
// cause from the underlying codec.
type CodecError struct {
	Err      error  // Underlying sentinel error (ErrSerialize, ErrDeserialize, ErrCorruptPayload)
	Mimetype string // Mimetype being encoded or decoded
	Cause    error  // Original error from the codec
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Err.Error(), e.Mimetype, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Err.Error(), e.Mimetype)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// MetadataError represents invalid envelope metadata, surfaced before
// any decode is attempted.
type MetadataError struct {
	Err      error  // Underlying sentinel error (ErrInvalidMetadata)
	Mimetype string // Mimetype whose metadata entry is invalid
	Reason   string // What is wrong with the entry
}

func (e *MetadataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Err.Error(), e.Mimetype, e.Reason)
	}
	return fmt.Sprintf("%s (%s)", e.Err.Error(), e.Mimetype)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// UnsupportedTypeError names the runtime type a codec refused to encode.
type UnsupportedTypeError struct {
	TypeName string // Runtime type of the rejected value
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedType.Error(), e.TypeName)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}
