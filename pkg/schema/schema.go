// Package schema declares the fixed-type field vocabulary for columnar
// batching and converts it into an Arrow schema descriptor.
//
// A Schema is an ordered, immutable set of named fields drawn from a
// closed set of scalar types. It is constructed once, validated eagerly,
// and shared read-only by any number of batchers:
//
//	s, err := schema.New(
//	    schema.Field{Name: "symbol", Type: schema.TypeString},
//	    schema.Field{Name: "price", Type: schema.TypeFloat64},
//	)
package schema

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/tjs392/otters/pkg/errors"
)

// Type is the physical type of a schema field. The vocabulary is
// deliberately closed; anything outside it fails at construction time.
type Type int

const (
	// TypeString is a UTF-8 string column
	TypeString Type = iota
	// TypeFloat64 is a 64-bit floating point column
	TypeFloat64
	// TypeInt64 is a 64-bit signed integer column
	TypeInt64

	numTypes
)

// String returns the type tag name
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeFloat64:
		return "float64"
	case TypeInt64:
		return "int64"
	default:
		return "unknown"
	}
}

// ParseType converts a type tag name into a Type. Recognized tags are
// "string" (alias "utf8"), "float64" and "int64".
func ParseType(tag string) (Type, error) {
	switch tag {
	case "string", "utf8":
		return TypeString, nil
	case "float64":
		return TypeFloat64, nil
	case "int64":
		return TypeInt64, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeValidation, "unknown field type %q", tag).
			WithDetail("type", tag)
	}
}

// arrowTypes is the exhaustive Type -> Arrow physical type table.
var arrowTypes = [numTypes]arrow.DataType{
	TypeString:  arrow.BinaryTypes.String,
	TypeFloat64: arrow.PrimitiveTypes.Float64,
	TypeInt64:   arrow.PrimitiveTypes.Int64,
}

// Field is one named, typed column declaration.
type Field struct {
	Name string
	Type Type
}

// Schema is an ordered, immutable field set. Construct with New; the
// zero value is not usable.
type Schema struct {
	fields      []Field
	arrowSchema *arrow.Schema
}

// New constructs a Schema from the given fields in declaration order.
// It fails if any field type is outside the vocabulary or if a field
// name repeats; the columnar conversion requires unique names, so
// duplicates are rejected here rather than surfacing later as a
// malformed batch.
func New(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "schema requires at least one field")
	}

	seen := make(map[string]struct{}, len(fields))
	arrowFields := make([]arrow.Field, 0, len(fields))
	var badTypes []string

	for _, f := range fields {
		if f.Type < 0 || f.Type >= numTypes {
			badTypes = append(badTypes, f.Name)
			continue
		}
		if _, dup := seen[f.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeValidation, "duplicate field name %q", f.Name).
				WithDetail("field", f.Name)
		}
		seen[f.Name] = struct{}{}

		arrowFields = append(arrowFields, arrow.Field{
			Name: f.Name,
			Type: arrowTypes[f.Type],
		})
	}

	// Report every field with an unknown type, not just the first.
	if len(badTypes) > 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown field type for %s", strings.Join(badTypes, ", ")).
			WithDetail("fields", badTypes)
	}

	return &Schema{
		fields:      append([]Field(nil), fields...),
		arrowSchema: arrow.NewSchema(arrowFields, nil),
	}, nil
}

// Fields returns the declared fields in order. The returned slice is a
// copy; the Schema stays immutable.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Arrow returns the columnar descriptor: an Arrow schema with one field
// per declared field, in declaration order. Idempotent.
func (s *Schema) Arrow() *arrow.Schema {
	return s.arrowSchema
}
