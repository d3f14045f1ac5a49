package batch

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjs392/otters/pkg/errors"
	"github.com/tjs392/otters/pkg/schema"
)

func tickerSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Field{Name: "symbol", Type: schema.TypeString},
		schema.Field{Name: "price", Type: schema.TypeFloat64},
	)
	require.NoError(t, err)
	return s
}

func TestNewDefaults(t *testing.T) {
	b, err := New(tickerSchema(t), Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
}

func TestNewValidation(t *testing.T) {
	s := tickerSchema(t)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "negative batch size", cfg: Config{BatchSize: -1}},
		{name: "negative interval", cfg: Config{FlushInterval: -time.Second}},
		{name: "sub-millisecond interval", cfg: Config{FlushInterval: 100 * time.Microsecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(s, tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}

	_, err := New(nil, Config{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestPushSizeTrigger(t *testing.T) {
	b, err := New(tickerSchema(t), Config{BatchSize: 3, FlushInterval: 10 * time.Second})
	require.NoError(t, err)

	rec, err := b.Push(Row{"symbol": "AAPL", "price": 150.0})
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = b.Push(Row{"symbol": "AAPL", "price": 152.0})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 2, b.Len())

	rec, err = b.Push(Row{"symbol": "AAPL", "price": 148.0})
	require.NoError(t, err)
	require.NotNil(t, rec)
	defer rec.Release()

	assert.Equal(t, int64(3), rec.NumRows())
	assert.Equal(t, 0, b.Len())

	symbols := rec.Column(0).(*array.String)
	prices := rec.Column(1).(*array.Float64)
	for i, want := range []string{"AAPL", "AAPL", "AAPL"} {
		assert.Equal(t, want, symbols.Value(i))
	}
	for i, want := range []float64{150.0, 152.0, 148.0} {
		assert.Equal(t, want, prices.Value(i))
	}
}

func TestPushTimeTrigger(t *testing.T) {
	b, err := New(tickerSchema(t), Config{BatchSize: 100, FlushInterval: 30 * time.Millisecond})
	require.NoError(t, err)

	rec, err := b.Push(Row{"symbol": "MSFT", "price": 401.5})
	require.NoError(t, err)
	assert.Nil(t, rec)

	time.Sleep(40 * time.Millisecond)

	rec, err = b.Push(Row{"symbol": "MSFT", "price": 402.0})
	require.NoError(t, err)
	require.NotNil(t, rec)
	defer rec.Release()

	// The triggering push's row is included.
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, 0, b.Len())
}

func TestTimeTriggerIsLazy(t *testing.T) {
	b, err := New(tickerSchema(t), Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	_, err = b.Push(Row{"symbol": "MSFT", "price": 401.5})
	require.NoError(t, err)

	// No push, no flush: the partial batch sits until the next call.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, b.Len())
}

func TestFlushRemaining(t *testing.T) {
	b, err := New(tickerSchema(t), Config{BatchSize: 100, FlushInterval: 10 * time.Second})
	require.NoError(t, err)

	// Empty buffer: no batch, and repeat calls stay empty.
	rec, err := b.FlushRemaining()
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = b.FlushRemaining()
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = b.Push(Row{"symbol": "AAPL", "price": 150.0})
	require.NoError(t, err)
	_, err = b.Push(Row{"symbol": "GOOG", "price": 2800.0})
	require.NoError(t, err)

	rec, err = b.FlushRemaining()
	require.NoError(t, err)
	require.NotNil(t, rec)
	defer rec.Release()

	assert.Equal(t, int64(2), rec.NumRows())
	symbols := rec.Column(0).(*array.String)
	assert.Equal(t, "AAPL", symbols.Value(0))
	assert.Equal(t, "GOOG", symbols.Value(1))
	assert.Equal(t, 0, b.Len())
}

func TestBatcherIsReusableAcrossFlushes(t *testing.T) {
	b, err := New(tickerSchema(t), Config{BatchSize: 2, FlushInterval: 10 * time.Second})
	require.NoError(t, err)

	for round := 0; round < 3; round++ {
		_, err := b.Push(Row{"symbol": "AAPL", "price": 1.0})
		require.NoError(t, err)

		rec, err := b.Push(Row{"symbol": "AAPL", "price": 2.0})
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, int64(2), rec.NumRows())
		rec.Release()
	}
}

func TestColumnOrderFollowsSchemaNotRow(t *testing.T) {
	s, err := schema.New(
		schema.Field{Name: "a", Type: schema.TypeInt64},
		schema.Field{Name: "b", Type: schema.TypeFloat64},
		schema.Field{Name: "c", Type: schema.TypeString},
	)
	require.NoError(t, err)

	b, err := New(s, Config{BatchSize: 1, FlushInterval: 10 * time.Second})
	require.NoError(t, err)

	rec, err := b.Push(Row{"c": "x", "a": int64(7), "b": 1.5})
	require.NoError(t, err)
	require.NotNil(t, rec)
	defer rec.Release()

	assert.Equal(t, "a", rec.Schema().Field(0).Name)
	assert.Equal(t, "b", rec.Schema().Field(1).Name)
	assert.Equal(t, "c", rec.Schema().Field(2).Name)
	assert.Equal(t, int64(7), rec.Column(0).(*array.Int64).Value(0))
	assert.Equal(t, 1.5, rec.Column(1).(*array.Float64).Value(0))
	assert.Equal(t, "x", rec.Column(2).(*array.String).Value(0))
}

func TestFlushFailurePreservesBuffer(t *testing.T) {
	b, err := New(tickerSchema(t), Config{BatchSize: 3, FlushInterval: 10 * time.Second})
	require.NoError(t, err)

	_, err = b.Push(Row{"symbol": "AAPL", "price": 150.0})
	require.NoError(t, err)
	_, err = b.Push(Row{"symbol": "AAPL", "price": 152.0})
	require.NoError(t, err)

	// Third push crosses the size threshold but the row cannot convert.
	rec, err := b.Push(Row{"symbol": "AAPL", "price": "not a float"})
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	// Everything, offending row included, is still buffered.
	assert.Equal(t, 3, b.Len())

	// Retrying without fixing the data keeps failing and keeps the buffer.
	rec, err = b.FlushRemaining()
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 3, b.Len())

	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, 2, e.Detail("row"))
	assert.Equal(t, "price", e.Detail("field"))

	// Explicit drop recovers the batcher.
	assert.Equal(t, 3, b.Drop())
	assert.Equal(t, 0, b.Len())

	_, err = b.Push(Row{"symbol": "AAPL", "price": 151.0})
	require.NoError(t, err)
}
