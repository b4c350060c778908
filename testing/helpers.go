// Package testing provides shared columnar fixtures for mimebundle
// tests.
package testing

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/datalayer/mimebundle/frame"
)

// IntColumn builds an int64 column. valid marks non-null slots; nil
// means all values present.
func IntColumn(name string, values []int64, valid []bool) *frame.Column {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, valid)
	arr := b.NewInt64Array()
	defer arr.Release()
	return frame.NewColumn(name, arr)
}

// FloatColumn builds a float64 column with no nulls.
func FloatColumn(name string, values []float64) *frame.Column {
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	arr := b.NewFloat64Array()
	defer arr.Release()
	return frame.NewColumn(name, arr)
}

// StringColumn builds a string column with no nulls.
func StringColumn(name string, values []string) *frame.Column {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	arr := b.NewStringArray()
	defer arr.Release()
	return frame.NewColumn(name, arr)
}

// BoolColumn builds a boolean column with no nulls.
func BoolColumn(name string, values []bool) *frame.Column {
	b := array.NewBooleanBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	arr := b.NewBooleanArray()
	defer arr.Release()
	return frame.NewColumn(name, arr)
}

// TimestampColumn builds a nanosecond-precision UTC timestamp column.
func TimestampColumn(name string, values []time.Time) *frame.Column {
	dt := &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}
	b := array.NewTimestampBuilder(memory.DefaultAllocator, dt)
	defer b.Release()
	for _, t := range values {
		b.Append(arrow.Timestamp(t.UnixNano()))
	}
	arr := b.NewTimestampArray()
	defer arr.Release()
	return frame.NewColumn(name, arr)
}

// DictColumn builds a dictionary-encoded (categorical) string column.
func DictColumn(name string, values []string) *frame.Column {
	dt := &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Int32,
		ValueType: arrow.BinaryTypes.String,
	}
	b := array.NewDictionaryBuilder(memory.DefaultAllocator, dt).(*array.BinaryDictionaryBuilder)
	defer b.Release()
	for _, v := range values {
		if err := b.Append([]byte(v)); err != nil {
			panic(err)
		}
	}
	arr := b.NewArray()
	defer arr.Release()
	return frame.NewColumn(name, arr)
}

// NullColumn builds an all-null int64 column of length n.
func NullColumn(name string, n int) *frame.Column {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendNulls(n)
	arr := b.NewInt64Array()
	defer arr.Release()
	return frame.NewColumn(name, arr)
}

// TableOf assembles columns into a table. All columns must share one
// length.
func TableOf(cols ...*frame.Column) *frame.Table {
	fields := make([]arrow.Field, len(cols))
	arrs := make([]arrow.Array, len(cols))
	rows := 0
	for i, c := range cols {
		fields[i] = c.Field()
		arrs[i] = c.Data()
		rows = c.Len()
	}
	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrs, int64(rows))
	defer rec.Release()
	return frame.NewTable(rec)
}

// SampleTable is the canonical three-row fixture: an integer column
// [1,2,3] and a string column ["x","y","z"].
func SampleTable() *frame.Table {
	nums := IntColumn("a", []int64{1, 2, 3}, nil)
	defer nums.Release()
	strs := StringColumn("b", []string{"x", "y", "z"})
	defer strs.Release()
	return TableOf(nums, strs)
}
