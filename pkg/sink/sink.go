// Package sink provides batch consumers for the batching pipeline.
package sink

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// BatchSink consumes emitted record batches. Write does not take
// ownership of the record; the pipeline releases it after Write
// returns.
type BatchSink interface {
	Write(ctx context.Context, rec arrow.Record) error
	// Close flushes and finalizes the sink
	Close() error
}
