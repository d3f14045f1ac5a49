package batch

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tjs392/otters/pkg/errors"
	"github.com/tjs392/otters/pkg/schema"
)

// buildRecord converts rows into one Arrow record batch conforming to
// the schema, in row order. The conversion is strict: a row field the
// schema does not declare, a declared field the row lacks, or a value
// whose dynamic type does not convert losslessly to the column type all
// fail the whole batch. Nothing is dropped or coerced silently.
func buildRecord(mem memory.Allocator, s *schema.Schema, rows []Row) (arrow.Record, error) {
	builder := array.NewRecordBuilder(mem, s.Arrow())
	defer builder.Release()

	fields := s.Fields()

	for i, row := range rows {
		if len(row) > len(fields) {
			if name := extraneousField(s, row); name != "" {
				return nil, mismatch(i, name, "field not declared in schema")
			}
		}

		for col, f := range fields {
			value, ok := row[f.Name]
			if !ok {
				return nil, mismatch(i, f.Name, "field missing from row")
			}
			if err := appendValue(builder.Field(col), f, value); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "row does not match schema").
					WithDetail("row", i).
					WithDetail("field", f.Name)
			}
		}
	}

	return builder.NewRecord(), nil
}

// appendValue appends one scalar to a column builder. Int widening into
// Float64 and Int64 columns is accepted; lossy conversions are not.
func appendValue(b array.Builder, f schema.Field, value interface{}) error {
	if value == nil {
		return errors.Newf(errors.ErrorTypeData, "null value for %s field", f.Type)
	}

	switch b := b.(type) {
	case *array.StringBuilder:
		v, ok := value.(string)
		if !ok {
			return errors.Newf(errors.ErrorTypeData, "cannot convert %T to string", value)
		}
		b.Append(v)

	case *array.Float64Builder:
		switch v := value.(type) {
		case float64:
			b.Append(v)
		case float32:
			b.Append(float64(v))
		case int:
			b.Append(float64(v))
		case int32:
			b.Append(float64(v))
		case int64:
			b.Append(float64(v))
		default:
			return errors.Newf(errors.ErrorTypeData, "cannot convert %T to float64", value)
		}

	case *array.Int64Builder:
		switch v := value.(type) {
		case int64:
			b.Append(v)
		case int32:
			b.Append(int64(v))
		case int:
			b.Append(int64(v))
		default:
			return errors.Newf(errors.ErrorTypeData, "cannot convert %T to int64", value)
		}

	default:
		return errors.Newf(errors.ErrorTypeInternal, "unsupported builder type %T", b)
	}

	return nil
}

// extraneousField returns the name of a row field absent from the
// schema, or "" when every key is declared.
func extraneousField(s *schema.Schema, row Row) string {
	for name := range row {
		if !s.Arrow().HasField(name) {
			return name
		}
	}
	return ""
}

// mismatch builds the strict-conversion error carrying the offending
// row index and field name.
func mismatch(row int, field, reason string) error {
	return errors.Newf(errors.ErrorTypeData, "row does not match schema: %s", reason).
		WithDetail("row", row).
		WithDetail("field", field)
}
