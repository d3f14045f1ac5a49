// Package batch implements the dual-trigger micro-batching buffer.
//
// A Batcher accumulates semi-structured rows and materializes them into
// Arrow record batches when either a row-count threshold or a time
// threshold is crossed. Both triggers are evaluated lazily on push;
// there is no background timer, so a quiet stream holds its partial
// batch until FlushRemaining is called. An active timer would change
// observable batch boundaries and force locking into an otherwise
// synchronous, single-writer type.
//
//	s, _ := schema.New(
//	    schema.Field{Name: "symbol", Type: schema.TypeString},
//	    schema.Field{Name: "price", Type: schema.TypeFloat64},
//	)
//	b, _ := batch.New(s, batch.Config{BatchSize: 500, FlushInterval: 50 * time.Millisecond})
//
//	for row := range rows {
//	    rec, err := b.Push(row)
//	    if rec != nil {
//	        write(rec)
//	        rec.Release()
//	    }
//	}
//	if rec, _ := b.FlushRemaining(); rec != nil {
//	    write(rec)
//	    rec.Release()
//	}
//
// A Batcher is not safe for concurrent use. If multiple producers feed
// one Batcher the caller provides the mutual exclusion; the time-based
// trigger is measured against the monotonic clock, not a queue of
// pending calls, so a lock inside Push would skew flush timing.
package batch

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tjs392/otters/pkg/errors"
	"github.com/tjs392/otters/pkg/schema"
)

// Row is one ephemeral record: a mapping from field name to scalar
// value. Validation against the schema is deferred to flush time.
type Row map[string]interface{}

const (
	// DefaultBatchSize is the row-count flush threshold when Config
	// leaves BatchSize zero.
	DefaultBatchSize = 500
	// DefaultFlushInterval is the time flush threshold when Config
	// leaves FlushInterval zero.
	DefaultFlushInterval = 50 * time.Millisecond
)

// Config contains Batcher thresholds. Zero values take the defaults;
// negative values are rejected at construction.
type Config struct {
	// BatchSize is the row count that triggers a flush
	BatchSize int
	// FlushInterval is the elapsed time since the last flush that
	// triggers a flush on the next push
	FlushInterval time.Duration
	// Allocator is the Arrow allocator used to build batches; nil
	// selects the Go allocator
	Allocator memory.Allocator
}

// Batcher buffers rows for one schema and emits Arrow record batches.
type Batcher struct {
	schema    *schema.Schema
	mem       memory.Allocator
	buffer    []Row
	batchSize int
	interval  time.Duration
	lastFlush time.Time
}

// New constructs a Batcher bound to the given schema. The current
// monotonic time becomes the initial flush reference point.
func New(s *schema.Schema, cfg Config) (*Batcher, error) {
	if s == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "batcher requires a schema")
	}

	size := cfg.BatchSize
	if size == 0 {
		size = DefaultBatchSize
	}
	if size < 1 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "batch size must be >= 1, got %d", cfg.BatchSize)
	}

	interval := cfg.FlushInterval
	if interval == 0 {
		interval = DefaultFlushInterval
	}
	if interval < time.Millisecond {
		return nil, errors.Newf(errors.ErrorTypeConfig, "flush interval must be >= 1ms, got %s", cfg.FlushInterval)
	}

	mem := cfg.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	return &Batcher{
		schema:    s,
		mem:       mem,
		buffer:    make([]Row, 0, size),
		batchSize: size,
		interval:  interval,
		lastFlush: time.Now(),
	}, nil
}

// Schema returns the schema the Batcher is bound to.
func (b *Batcher) Schema() *schema.Schema {
	return b.schema
}

// Len returns the number of rows currently buffered.
func (b *Batcher) Len() int {
	return len(b.buffer)
}

// Push appends a row to the buffer and flushes when a threshold is
// crossed: size first, then elapsed time since the last flush. The
// returned record is nil when the row stays buffered; when non-nil the
// caller owns it and must Release it.
//
// A conversion failure leaves the buffer (including the offending row)
// and the flush timer untouched, so the caller can drop or repair the
// bad data and retry.
func (b *Batcher) Push(row Row) (arrow.Record, error) {
	b.buffer = append(b.buffer, row)

	if len(b.buffer) >= b.batchSize {
		return b.flush()
	}

	if time.Since(b.lastFlush) >= b.interval {
		return b.flush()
	}

	return nil, nil
}

// Drop discards every buffered row without producing a batch and
// starts a fresh accumulation window. It returns the number of rows
// discarded. This is the explicit escape hatch after a conversion
// failure: nothing is dropped automatically.
func (b *Batcher) Drop() int {
	n := len(b.buffer)
	b.buffer = b.buffer[:0]
	b.lastFlush = time.Now()
	return n
}

// FlushRemaining drains the buffer regardless of thresholds. It returns
// nil when the buffer is empty and is safe to call repeatedly; intended
// for stream-end and shutdown draining.
func (b *Batcher) FlushRemaining() (arrow.Record, error) {
	return b.flush()
}

// flush converts the buffered rows into one record batch in push order.
// Empty buffer is a no-op, not an error.
func (b *Batcher) flush() (arrow.Record, error) {
	if len(b.buffer) == 0 {
		return nil, nil
	}

	rec, err := buildRecord(b.mem, b.schema, b.buffer)
	if err != nil {
		return nil, err
	}

	b.buffer = b.buffer[:0]
	b.lastFlush = time.Now()
	return rec, nil
}
