// Package frame defines the columnar value model exchanged over the wire:
// a two-dimensional labeled Table and a one-dimensional labeled Column,
// both backed by Apache Arrow memory.
//
// The package also provides Classify, an explicit variant check used by
// codecs to decide whether a value is columnar at all. Codecs dispatch on
// the returned Kind instead of probing attributes on arbitrary values.
package frame

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Kind classifies a runtime value for columnar dispatch.
type Kind int

const (
	// KindOther is any value that is neither a table nor a column.
	KindOther Kind = iota
	// KindTable is a two-dimensional labeled table.
	KindTable
	// KindColumn is a one-dimensional labeled column.
	KindColumn
)

// Classify reports whether v is a table, a column, or something else.
// A raw arrow.Record counts as a table. Typed nil tables and columns
// carry no data and classify as KindOther.
func Classify(v any) Kind {
	switch t := v.(type) {
	case *Table:
		if t == nil {
			return KindOther
		}
		return KindTable
	case *Column:
		if t == nil {
			return KindOther
		}
		return KindColumn
	case arrow.Record:
		return KindTable
	default:
		return KindOther
	}
}

// Table is a two-dimensional labeled table: an ordered set of named,
// typed columns of equal length, wrapping an arrow.Record.
//
// NewTable retains the record; call Release when the table is no longer
// needed.
type Table struct {
	rec arrow.Record
}

// NewTable wraps rec in a Table, retaining it.
func NewTable(rec arrow.Record) *Table {
	rec.Retain()
	return &Table{rec: rec}
}

// Record returns the underlying arrow record.
func (t *Table) Record() arrow.Record { return t.rec }

// Schema returns the table schema.
func (t *Table) Schema() *arrow.Schema { return t.rec.Schema() }

// NumRows returns the number of rows.
func (t *Table) NumRows() int64 { return t.rec.NumRows() }

// NumCols returns the number of columns.
func (t *Table) NumCols() int64 { return t.rec.NumCols() }

// Release decrements the reference count of the underlying record.
func (t *Table) Release() { t.rec.Release() }

// Equal reports value equality: same schema (including schema and field
// metadata), same column order and names, same values.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !t.rec.Schema().Equal(o.rec.Schema()) {
		return false
	}
	if !t.rec.Schema().Metadata().Equal(o.rec.Schema().Metadata()) {
		return false
	}
	return array.RecordEqual(t.rec, o.rec)
}

// Column is a one-dimensional labeled column: a name plus a typed arrow
// array. An empty name is legal and survives a round trip.
//
// NewColumn retains the array; call Release when the column is no longer
// needed.
type Column struct {
	field arrow.Field
	data  arrow.Array
}

// NewColumn builds a Column from a name and an array.
func NewColumn(name string, data arrow.Array) *Column {
	return NewColumnWithField(arrow.Field{Name: name, Type: data.DataType(), Nullable: true}, data)
}

// NewColumnWithField builds a Column carrying a full field definition,
// preserving field metadata alongside the name.
func NewColumnWithField(field arrow.Field, data arrow.Array) *Column {
	data.Retain()
	return &Column{field: field, data: data}
}

// Name returns the column label.
func (c *Column) Name() string { return c.field.Name }

// Field returns the full field definition, including metadata.
func (c *Column) Field() arrow.Field { return c.field }

// Data returns the underlying array.
func (c *Column) Data() arrow.Array { return c.data }

// Len returns the number of values.
func (c *Column) Len() int { return c.data.Len() }

// Release decrements the reference count of the underlying array.
func (c *Column) Release() { c.data.Release() }

// Equal reports value equality: same name, field metadata, dtype, and
// values.
func (c *Column) Equal(o *Column) bool {
	if c == nil || o == nil {
		return c == o
	}
	if !c.field.Equal(o.field) {
		return false
	}
	return array.Equal(c.data, o.data)
}
