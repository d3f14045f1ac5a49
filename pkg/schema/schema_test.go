package schema

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjs392/otters/pkg/errors"
)

func TestNewPreservesFieldOrder(t *testing.T) {
	s, err := New(
		Field{Name: "symbol", Type: TypeString},
		Field{Name: "price", Type: TypeFloat64},
		Field{Name: "volume", Type: TypeInt64},
	)
	require.NoError(t, err)

	fields := s.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "symbol", fields[0].Name)
	assert.Equal(t, "price", fields[1].Name)
	assert.Equal(t, "volume", fields[2].Name)
	assert.Equal(t, 3, s.Len())
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(Field{Name: "broken", Type: Type(99)})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"broken"}, e.Detail("fields"))
}

func TestNewNamesEveryUnknownType(t *testing.T) {
	_, err := New(
		Field{Name: "ok", Type: TypeString},
		Field{Name: "first", Type: Type(99)},
		Field{Name: "second", Type: Type(-1)},
	)
	require.Error(t, err)

	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"first", "second"}, e.Detail("fields"))
	assert.Contains(t, e.Message, "first")
	assert.Contains(t, e.Message, "second")
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New(
		Field{Name: "price", Type: TypeFloat64},
		Field{Name: "price", Type: TypeFloat64},
	)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestNewRejectsEmptySchema(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestArrowDescriptor(t *testing.T) {
	s, err := New(
		Field{Name: "symbol", Type: TypeString},
		Field{Name: "price", Type: TypeFloat64},
		Field{Name: "volume", Type: TypeInt64},
	)
	require.NoError(t, err)

	as := s.Arrow()
	require.Equal(t, 3, as.NumFields())

	assert.Equal(t, "symbol", as.Field(0).Name)
	assert.Equal(t, arrow.BinaryTypes.String, as.Field(0).Type)
	assert.Equal(t, "price", as.Field(1).Name)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, as.Field(1).Type)
	assert.Equal(t, "volume", as.Field(2).Name)
	assert.Equal(t, arrow.PrimitiveTypes.Int64, as.Field(2).Type)

	// Idempotent: repeated calls describe the same schema.
	assert.True(t, as.Equal(s.Arrow()))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		tag     string
		want    Type
		wantErr bool
	}{
		{tag: "string", want: TypeString},
		{tag: "utf8", want: TypeString},
		{tag: "float64", want: TypeFloat64},
		{tag: "int64", want: TypeInt64},
		{tag: "decimal", wantErr: true},
		{tag: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseType(tt.tag)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "string", TypeString.String())
	assert.Equal(t, "float64", TypeFloat64.String())
	assert.Equal(t, "int64", TypeInt64.String())
	assert.Equal(t, "unknown", Type(42).String())
}
