// Package mimebundle gives notebook variables a binary, round-trippable
// wire representation, so a remote client can retrieve the exact
// in-memory value of a variable rather than its visual rendering.
//
// # Dispatch
//
// Every value maps to a TypeKey (defining module plus type name). A
// Registry resolves the key to a codec: exact match first, then a
// module wildcard, then the built-in generic fallback, so resolution is
// total. Tables and columns (see the frame package) encode as Arrow IPC
// streams via the arrowipc codec; everything else encodes through the
// objgraph serializer.
//
// # Envelope
//
// Payloads travel as a mimebundle envelope: base64 text keyed by
// mimetype, plus per-mimetype metadata recording the TypeKey needed to
// pick a decoder on the far side.
//
//	data:     { "<mimetype>": "<base64 text>" }
//	metadata: { "<mimetype>": { "type": ["<module-or-null>", "<name>"] } }
//
// # Basic Usage
//
//	reg := mimebundle.NewRegistry()
//	arrowipc.Register(reg)
//
//	data, metadata, _ := mimebundle.SerializeObject(ctx, table, reg)
//	// ... transport ...
//	restored, _ := mimebundle.DeserializeObject(ctx, data, metadata, reg)
//
// # Display integration
//
// Wrap adapts a value to the host's display-formatting protocol,
// injecting the binary representation alongside the human-readable ones:
//
//	data, metadata := mimebundle.Wrap(df, reg, mimebundle.WithFormatter(host)).Render(ctx, nil, nil)
//
// # Failure policy
//
// Encode and decode failures always surface to the caller; there are no
// internal retries and no silent codec substitution. The one exception
// is the display path, where a failed binary serialization is reported
// via signal and swallowed so plain representations still render.
package mimebundle

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"time"
)

// Serialize encodes v with the codec the registry resolves for it and
// returns the base64 payload text plus the codec's mimetype.
//
// The registry's decision is final: when the selected codec fails, the
// whole operation fails rather than retrying another codec, since that
// would silently change the wire type contract.
func Serialize(ctx context.Context, v any, reg *Registry) (string, string, error) {
	key := TypeKeyOf(v)
	c := reg.Lookup(key)
	mimetype := c.Mimetype()

	start := time.Now()
	emitSerializeStart(ctx, mimetype, key.String())

	raw, err := c.Encode(v)
	if err != nil {
		werr := &CodecError{Err: ErrSerialize, Mimetype: mimetype, Cause: err}
		emitSerializeComplete(ctx, mimetype, key.String(), 0, time.Since(start), werr)
		return "", "", werr
	}

	payload := base64.StdEncoding.EncodeToString(raw)
	emitSerializeComplete(ctx, mimetype, key.String(), len(raw), time.Since(start), nil)
	return payload, mimetype, nil
}

// Deserialize reconstructs a value from base64 payload text. An empty
// mimetype defaults to the fallback mimetype. The metadata mapping (as
// produced by SerializeObject, keyed by mimetype) supplies the recorded
// TypeKey; for the fallback mimetype it may be empty, since that payload
// is self-describing.
func Deserialize(ctx context.Context, payload string, reg *Registry, metadata map[string]map[string]any, mimetype string) (any, error) {
	fallback := reg.Fallback().Mimetype()
	if mimetype == "" {
		mimetype = fallback
	}
	if !reg.Recognizes(mimetype) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMimetype, mimetype)
	}

	start := time.Now()
	emitDeserializeStart(ctx, mimetype)

	var retErr error
	var typeName string
	defer func() {
		emitDeserializeComplete(ctx, mimetype, typeName, len(payload), time.Since(start), retErr)
	}()

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		retErr = &CodecError{Err: ErrDeserialize, Mimetype: mimetype, Cause: err}
		return nil, retErr
	}

	key, haveKey, err := typeKeyFromMeta(metadata[mimetype])
	if err != nil {
		retErr = &MetadataError{Err: ErrInvalidMetadata, Mimetype: mimetype, Reason: err.Error()}
		return nil, retErr
	}
	if !haveKey && mimetype != fallback {
		retErr = &MetadataError{Err: ErrInvalidMetadata, Mimetype: mimetype, Reason: "missing type record"}
		return nil, retErr
	}
	typeName = key.String()

	dec, ok := reg.decoderFor(key, mimetype, haveKey)
	if !ok {
		retErr = fmt.Errorf("%w: %q", ErrUnsupportedMimetype, mimetype)
		return nil, retErr
	}

	v, err := dec(raw, key)
	if err != nil {
		retErr = &CodecError{Err: ErrDeserialize, Mimetype: mimetype, Cause: err}
		return nil, retErr
	}
	return v, nil
}

// SerializeObject builds the full transport envelope for v: payload text
// under the resolved mimetype, and metadata recording v's TypeKey under
// the same mimetype.
func SerializeObject(ctx context.Context, v any, reg *Registry) (map[string]string, map[string]map[string]any, error) {
	payload, mimetype, err := Serialize(ctx, v, reg)
	if err != nil {
		return nil, nil, err
	}
	data := map[string]string{mimetype: payload}
	metadata := map[string]map[string]any{
		mimetype: {"type": TypeKeyOf(v)},
	}
	return data, metadata, nil
}

// DeserializeObject reconstructs a value from a transport envelope. The
// mimetype is chosen from the envelope itself: the first recognized
// specialized mimetype present in both data and metadata, then the
// fallback mimetype. An envelope offering nothing decodable fails with
// ErrNoData.
func DeserializeObject(ctx context.Context, data map[string]string, metadata map[string]map[string]any, reg *Registry) (any, error) {
	mimetype, err := pickMimetype(data, metadata, reg)
	if err != nil {
		return nil, err
	}
	return Deserialize(ctx, data[mimetype], reg, metadata, mimetype)
}

// pickMimetype selects the envelope entry to decode. Specialized
// mimetypes win over the fallback; candidates are ordered
// deterministically. A candidate with a malformed metadata entry fails
// validation immediately rather than being skipped.
func pickMimetype(data map[string]string, metadata map[string]map[string]any, reg *Registry) (string, error) {
	fallback := reg.Fallback().Mimetype()

	candidates := make([]string, 0, len(data))
	for mt := range data {
		if mt != fallback && reg.Recognizes(mt) {
			candidates = append(candidates, mt)
		}
	}
	sort.Strings(candidates)
	if _, ok := data[fallback]; ok {
		candidates = append(candidates, fallback)
	}

	for _, mt := range candidates {
		md, ok := metadata[mt]
		if !ok {
			continue
		}
		if _, _, err := typeKeyFromMeta(md); err != nil {
			return "", &MetadataError{Err: ErrInvalidMetadata, Mimetype: mt, Reason: err.Error()}
		}
		return mt, nil
	}
	return "", ErrNoData
}

// GetVariable serializes one variable out of a scope (a name→value
// mapping such as an interpreter's globals). A missing name fails with
// ErrUnknownVariable. A non-empty mimetype restricts the envelope to
// that representation; asking for a mimetype the value does not
// serialize to fails with ErrUnsupportedMimetype.
func GetVariable(ctx context.Context, scope map[string]any, name, mimetype string, reg *Registry) (map[string]string, map[string]map[string]any, error) {
	v, ok := scope[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}

	data, metadata, err := SerializeObject(ctx, v, reg)
	if err != nil {
		return nil, nil, err
	}
	if mimetype == "" {
		return data, metadata, nil
	}

	payload, ok := data[mimetype]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q for variable %q", ErrUnsupportedMimetype, mimetype, name)
	}
	return map[string]string{mimetype: payload},
		map[string]map[string]any{mimetype: metadata[mimetype]},
		nil
}
