// Package arrowipc encodes tables and columns as Arrow IPC streams, the
// schema-carrying binary container used as the columnar wire format.
//
// A table encodes directly with its schema. A column is wrapped into a
// single-column stream, its name preserved as the column label (a
// placeholder label when the column is unnamed) and restored on decode.
package arrowipc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/datalayer/mimebundle"
	"github.com/datalayer/mimebundle/frame"
)

// Mimetype identifies Arrow IPC stream payloads.
const Mimetype = mimebundle.ColumnarMimetype

// placeholderName labels an unnamed column inside the stream; decode
// maps it back to the empty name. The field metadata marker
// distinguishes it from a column legitimately named "0".
const (
	placeholderName = "0"
	unnamedMetaKey  = "mimebundle:unnamed"
)

// arrowArrayPkg is the module identity of raw arrow record and array
// types, used for wildcard registration.
const arrowArrayPkg = "github.com/apache/arrow-go/v18/arrow/array"

// arrowCodec implements mimebundle.Codec for Arrow IPC streams.
type arrowCodec struct{}

// New returns the columnar codec.
func New() mimebundle.Codec {
	return arrowCodec{}
}

// Mimetype returns the columnar mimetype.
func (arrowCodec) Mimetype() string { return Mimetype }

// Encode encodes a table or column value.
func (arrowCodec) Encode(v any) ([]byte, error) {
	return Encode(v)
}

// Decode picks the variant from the recorded type name. Without an exact
// match the stream decodes structurally: a "Column" name yields a bare
// column, anything else a table. A legitimately single-column table is
// indistinguishable here, which is why exact decode hooks are registered
// alongside this default.
func (arrowCodec) Decode(b []byte, key mimebundle.TypeKey) (any, error) {
	if key.Name == "Column" {
		return DecodeColumn(b)
	}
	return DecodeTable(b)
}

// Register installs the columnar codec into reg: exact entries and
// decode hooks for frame.Table and frame.Column, plus module wildcards
// covering the rest of the frame package and raw arrow record types.
func Register(reg *mimebundle.Registry) {
	c := New()
	tableKey := mimebundle.TypeKeyOf(&frame.Table{})
	columnKey := mimebundle.TypeKeyOf(&frame.Column{})

	reg.Register(tableKey, c)
	reg.Register(columnKey, c)
	reg.RegisterModule(tableKey.Module, c)
	reg.RegisterModule(arrowArrayPkg, c)

	reg.RegisterDecodeHook(tableKey, func(b []byte, _ mimebundle.TypeKey) (any, error) {
		return DecodeTable(b)
	})
	reg.RegisterDecodeHook(columnKey, func(b []byte, _ mimebundle.TypeKey) (any, error) {
		return DecodeColumn(b)
	})
}

// Encode serializes a *frame.Table, *frame.Column, or raw arrow.Record
// into an Arrow IPC stream. Any other value fails with an error naming
// the offending runtime type.
func Encode(v any) ([]byte, error) {
	switch frame.Classify(v) {
	case frame.KindTable:
		return writeStream(recordOf(v))
	case frame.KindColumn:
		col := v.(*frame.Column)
		field := col.Field()
		if field.Name == "" {
			field = markUnnamed(field)
		}
		schema := arrow.NewSchema([]arrow.Field{field}, nil)
		rec := array.NewRecord(schema, []arrow.Array{col.Data()}, int64(col.Len()))
		defer rec.Release()
		return writeStream(rec)
	default:
		return nil, &mimebundle.UnsupportedTypeError{TypeName: fmt.Sprintf("%T", v)}
	}
}

func recordOf(v any) arrow.Record {
	if t, ok := v.(*frame.Table); ok {
		return t.Record()
	}
	return v.(arrow.Record)
}

func writeStream(rec arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(memory.DefaultAllocator))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeTable reads an Arrow IPC stream back into a table, preserving
// column order, names, dtypes, schema metadata, and dictionary columns.
// Multi-batch streams are concatenated column-wise.
func DecodeTable(b []byte) (*frame.Table, error) {
	r, err := ipc.NewReader(bytes.NewReader(b), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, corrupt(err)
	}
	defer r.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := r.Err(); err != nil && err != io.EOF {
		return nil, corrupt(err)
	}

	switch len(recs) {
	case 0:
		return emptyTable(r.Schema())
	case 1:
		return frame.NewTable(recs[0]), nil
	default:
		return concatTable(recs)
	}
}

// DecodeColumn reads a single-column Arrow IPC stream back into a bare
// column with its name restored.
func DecodeColumn(b []byte) (*frame.Column, error) {
	t, err := DecodeTable(b)
	if err != nil {
		return nil, err
	}
	defer t.Release()

	if t.NumCols() != 1 {
		return nil, corrupt(fmt.Errorf("column payload holds %d columns", t.NumCols()))
	}
	field := restoreUnnamed(t.Schema().Field(0))
	return frame.NewColumnWithField(field, t.Record().Column(0)), nil
}

// markUnnamed substitutes the placeholder label and records that the
// original name was empty.
func markUnnamed(field arrow.Field) arrow.Field {
	keys := append(append([]string(nil), field.Metadata.Keys()...), unnamedMetaKey)
	values := append(append([]string(nil), field.Metadata.Values()...), "1")
	field.Name = placeholderName
	field.Metadata = arrow.NewMetadata(keys, values)
	return field
}

// restoreUnnamed reverses markUnnamed. A field named with the bare
// placeholder but no marker is a real column named "0" and passes
// through untouched.
func restoreUnnamed(field arrow.Field) arrow.Field {
	if field.Name != placeholderName {
		return field
	}
	idx := field.Metadata.FindKey(unnamedMetaKey)
	if idx < 0 {
		return field
	}
	var keys, values []string
	for i, k := range field.Metadata.Keys() {
		if i == idx {
			continue
		}
		keys = append(keys, k)
		values = append(values, field.Metadata.Values()[i])
	}
	field.Name = ""
	field.Metadata = arrow.NewMetadata(keys, values)
	return field
}

// emptyTable rebuilds a zero-row table from a schema-only stream.
func emptyTable(schema *arrow.Schema) (*frame.Table, error) {
	if schema == nil {
		return nil, corrupt(fmt.Errorf("stream carries no schema"))
	}
	cols := make([]arrow.Array, schema.NumFields())
	for i, f := range schema.Fields() {
		b := array.NewBuilder(memory.DefaultAllocator, f.Type)
		cols[i] = b.NewArray()
		b.Release()
	}
	rec := array.NewRecord(schema, cols, 0)
	defer rec.Release()
	for _, col := range cols {
		col.Release()
	}
	return frame.NewTable(rec), nil
}

func concatTable(recs []arrow.Record) (*frame.Table, error) {
	schema := recs[0].Schema()
	var rows int64
	for _, rec := range recs {
		rows += rec.NumRows()
	}
	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, col := range cols {
			if col != nil {
				col.Release()
			}
		}
	}()
	for i := range cols {
		parts := make([]arrow.Array, len(recs))
		for j, rec := range recs {
			parts[j] = rec.Column(i)
		}
		merged, err := array.Concatenate(parts, memory.DefaultAllocator)
		if err != nil {
			return nil, corrupt(err)
		}
		cols[i] = merged
	}
	rec := array.NewRecord(schema, cols, rows)
	defer rec.Release()
	return frame.NewTable(rec), nil
}

func corrupt(err error) error {
	return &mimebundle.CodecError{Err: mimebundle.ErrCorruptPayload, Mimetype: Mimetype, Cause: err}
}
