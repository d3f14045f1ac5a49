// Package source provides row and batch producers for the batching
// pipeline: NDJSON files (optionally compressed), Kafka topics, and
// Parquet files for already-columnar input.
package source

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/tjs392/otters/pkg/batch"
)

// RowStream is a stream of decoded rows. The Rows channel closes when
// the source is exhausted or its context is cancelled; a terminal
// failure arrives on Errors before Rows closes.
type RowStream struct {
	Rows   <-chan batch.Row
	Errors <-chan error
}

// RowSource produces a stream of rows for the batcher.
type RowSource interface {
	// Read starts producing rows. It may be called once per source.
	Read(ctx context.Context) (*RowStream, error)
	// Close releases source resources
	Close() error
}

// BatchStream is a stream of columnar batches. Every record handed over
// the channel is retained for the receiver, which must Release it.
type BatchStream struct {
	Batches <-chan arrow.Record
	Errors  <-chan error
}

// BatchSource produces already-columnar batches, bypassing the batcher.
type BatchSource interface {
	// Read starts producing batches. It may be called once per source.
	Read(ctx context.Context) (*BatchStream, error)
	// Close releases source resources
	Close() error
}
