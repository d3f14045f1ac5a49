// Package compute provides streaming transformations over Arrow record
// batches. Stages carry state across batches, so a window that spans a
// batch boundary keeps accumulating; each builtin appends one derived
// float64 column and leaves the input columns untouched.
package compute

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tjs392/otters/pkg/errors"
)

// Stage transforms record batches in-flight. Process consumes the input
// record (releasing it on success) and returns a new record the caller
// owns. Stages are stateful and not safe for concurrent use; the
// pipeline runs each stage on a single goroutine.
type Stage interface {
	Name() string
	Process(rec arrow.Record) (arrow.Record, error)
}

// floatColumn locates a float64 column by name.
func floatColumn(rec arrow.Record, name string) (*array.Float64, error) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, errors.Newf(errors.ErrorTypeData, "column %q not found", name).
			WithDetail("column", name)
	}

	col, ok := rec.Column(indices[0]).(*array.Float64)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "column %q is not float64", name).
			WithDetail("column", name)
	}
	return col, nil
}

// appendColumn rebuilds rec with one extra float64 column. The input
// record is released; the returned record belongs to the caller.
func appendColumn(mem memory.Allocator, rec arrow.Record, values []float64, name string) (arrow.Record, error) {
	if rec.Schema().HasField(name) {
		return nil, errors.Newf(errors.ErrorTypeData, "column %q already exists", name).
			WithDetail("column", name)
	}

	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(values, nil)

	col := b.NewArray()
	defer col.Release()

	oldSchema := rec.Schema()
	fields := make([]arrow.Field, 0, oldSchema.NumFields()+1)
	for i := 0; i < oldSchema.NumFields(); i++ {
		fields = append(fields, oldSchema.Field(i))
	}
	fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true})

	columns := make([]arrow.Array, 0, len(fields))
	columns = append(columns, rec.Columns()...)
	columns = append(columns, col)

	out := array.NewRecord(arrow.NewSchema(fields, nil), columns, rec.NumRows())
	rec.Release()
	return out, nil
}
