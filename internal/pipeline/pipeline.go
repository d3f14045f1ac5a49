// Package pipeline wires a row or batch source through the batcher and
// compute stages into a sink. Each hop is a bounded channel, so a slow
// sink backs pressure up through the stages to the source; the batcher
// runs on a single goroutine, preserving its single-writer contract.
// The time-based flush trigger stays lazy: the engine never flushes
// from a timer, only on the next row or at stream end.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/tjs392/otters/pkg/batch"
	"github.com/tjs392/otters/pkg/compute"
	"github.com/tjs392/otters/pkg/errors"
	"github.com/tjs392/otters/pkg/metrics"
	"github.com/tjs392/otters/pkg/sink"
	"github.com/tjs392/otters/pkg/source"
)

// batchChannelDepth bounds how many flushed batches may queue ahead of
// the stage/sink worker.
const batchChannelDepth = 4

// Pipeline executes one configured run: source, optional batcher,
// compute stages, sink.
type Pipeline struct {
	name string

	rowSource   source.RowSource
	batchSource source.BatchSource
	batcher     *batch.Batcher
	batchSize   int
	stages      []compute.Stage
	out         sink.BatchSink

	logger *zap.Logger

	mu         sync.Mutex
	rowsIn     int64
	batchesOut int64
}

// Run executes the pipeline until the source is exhausted or ctx is
// cancelled, then drains the partial batch and closes the sink. The
// first error cancels everything downstream.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	p.logger.Info("pipeline starting")

	batches := make(chan arrow.Record, batchChannelDepth)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		if err == nil {
			return
		}
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	if p.rowSource != nil {
		stream, err := p.rowSource.Read(ctx)
		if err != nil {
			close(batches)
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(batches)
			fail(p.runBatcher(ctx, stream, batches))
		}()
	} else {
		stream, err := p.batchSource.Read(ctx)
		if err != nil {
			close(batches)
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(batches)
			fail(p.forwardBatches(ctx, stream, batches))
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		fail(p.runStages(ctx, batches))
	}()

	wg.Wait()

	if err := p.out.Close(); err != nil {
		fail(err)
	}

	p.mu.Lock()
	rows, emitted := p.rowsIn, p.batchesOut
	p.mu.Unlock()

	p.logger.Info("pipeline finished",
		zap.Int64("rows_in", rows),
		zap.Int64("batches_out", emitted),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(firstErr))

	return firstErr
}

// Close releases the source. The sink is closed by Run.
func (p *Pipeline) Close() error {
	if p.rowSource != nil {
		return p.rowSource.Close()
	}
	if p.batchSource != nil {
		return p.batchSource.Close()
	}
	return nil
}

// runBatcher owns the Batcher: it pushes every incoming row, hands
// emitted batches downstream, and drains the remainder when the row
// stream ends. A conversion failure drops the poisoned buffer rather
// than wedging the stream on it.
func (p *Pipeline) runBatcher(ctx context.Context, stream *source.RowStream, batches chan<- arrow.Record) error {
	for {
		select {
		case row, ok := <-stream.Rows:
			if !ok {
				return p.drain(ctx, batches)
			}

			p.mu.Lock()
			p.rowsIn++
			p.mu.Unlock()
			metrics.RowsIn.WithLabelValues(p.name).Inc()

			trigger := metrics.TriggerInterval
			if p.batcher.Len()+1 >= p.batchSize {
				trigger = metrics.TriggerSize
			}

			flushStart := time.Now()
			rec, err := p.batcher.Push(row)
			if err != nil {
				p.dropPoisoned(err)
				continue
			}
			if rec == nil {
				continue
			}

			metrics.ObserveFlush(p.name, trigger, rec.NumRows(), time.Since(flushStart))
			if !p.emit(ctx, batches, rec) {
				return ctx.Err()
			}

		case err, ok := <-stream.Errors:
			if ok && err != nil {
				return err
			}
			stream.Errors = nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain flushes whatever is still buffered at stream end.
func (p *Pipeline) drain(ctx context.Context, batches chan<- arrow.Record) error {
	flushStart := time.Now()
	rec, err := p.batcher.FlushRemaining()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to drain remaining rows")
	}
	if rec == nil {
		return nil
	}

	metrics.ObserveFlush(p.name, metrics.TriggerDrain, rec.NumRows(), time.Since(flushStart))
	if !p.emit(ctx, batches, rec) {
		return ctx.Err()
	}
	return nil
}

// dropPoisoned logs a conversion failure and discards the buffer. The
// batcher preserves the buffer on failure; without the drop every later
// push would keep failing on the same rows.
func (p *Pipeline) dropPoisoned(err error) {
	dropped := p.batcher.Drop()
	metrics.RowsRejected.WithLabelValues(p.name).Add(float64(dropped))

	fields := []zap.Field{zap.Int("rows_dropped", dropped), zap.Error(err)}
	if e, ok := errors.As(err); ok {
		fields = append(fields,
			zap.Any("row", e.Detail("row")),
			zap.Any("field", e.Detail("field")))
	}
	p.logger.Error("dropping batch that failed schema conversion", fields...)
}

// forwardBatches relays already-columnar batches from a batch source.
func (p *Pipeline) forwardBatches(ctx context.Context, stream *source.BatchStream, batches chan<- arrow.Record) error {
	for {
		select {
		case rec, ok := <-stream.Batches:
			if !ok {
				return nil
			}
			p.mu.Lock()
			p.rowsIn += rec.NumRows()
			p.mu.Unlock()
			metrics.RowsIn.WithLabelValues(p.name).Add(float64(rec.NumRows()))

			if !p.emit(ctx, batches, rec) {
				return ctx.Err()
			}

		case err, ok := <-stream.Errors:
			if ok && err != nil {
				return err
			}
			stream.Errors = nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// emit hands a record downstream, releasing it if the pipeline is
// shutting down instead.
func (p *Pipeline) emit(ctx context.Context, batches chan<- arrow.Record, rec arrow.Record) bool {
	select {
	case batches <- rec:
		return true
	case <-ctx.Done():
		rec.Release()
		return false
	}
}

// runStages applies the stage chain to each batch and writes the result
// to the sink.
func (p *Pipeline) runStages(ctx context.Context, batches <-chan arrow.Record) error {
	// Release anything still queued when this worker exits early; the
	// producer side closes the channel once the context is cancelled.
	defer func() {
		for rec := range batches {
			rec.Release()
		}
	}()

	for rec := range batches {
		out := rec

		for _, stage := range p.stages {
			next, err := stage.Process(out)
			if err != nil {
				out.Release()
				return errors.Wrap(err, errors.ErrorTypeData, "stage failed").
					WithDetail("stage", stage.Name())
			}
			out = next
		}

		if err := p.out.Write(ctx, out); err != nil {
			out.Release()
			return err
		}
		out.Release()

		p.mu.Lock()
		p.batchesOut++
		p.mu.Unlock()
	}
	return nil
}
