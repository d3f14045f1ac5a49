package source

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/tjs392/otters/pkg/errors"
)

// DefaultParquetBatchSize is the row count per batch read from a
// parquet file when none is configured. Batch size bounds memory use
// regardless of file size.
const DefaultParquetBatchSize = 4096

// ParquetSource streams record batches out of a parquet file. The
// footer metadata is read up front; row data is pulled batch by batch.
type ParquetSource struct {
	path      string
	batchSize int64
	mem       memory.Allocator
	logger    *zap.Logger

	reader *file.Reader
}

// NewParquetSource creates a parquet batch source.
func NewParquetSource(path string, batchSize int, logger *zap.Logger) *ParquetSource {
	if batchSize < 1 {
		batchSize = DefaultParquetBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParquetSource{
		path:      path,
		batchSize: int64(batchSize),
		mem:       memory.NewGoAllocator(),
		logger:    logger.With(zap.String("source", "parquet"), zap.String("path", path)),
	}
}

// Read opens the file and starts streaming batches.
func (s *ParquetSource) Read(ctx context.Context) (*BatchStream, error) {
	pf, err := file.OpenParquetFile(s.path, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open parquet file").
			WithDetail("path", s.path)
	}
	s.reader = pf

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: s.batchSize}, s.mem)
	if err != nil {
		pf.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read parquet metadata").
			WithDetail("path", s.path)
	}

	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		pf.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to build parquet record reader").
			WithDetail("path", s.path)
	}

	batches := make(chan arrow.Record, 4)
	errs := make(chan error, 1)

	go func() {
		defer close(batches)
		defer close(errs)
		defer rr.Release()

		n := 0
		for rr.Next() {
			rec := rr.Record()
			// The reader owns rec until the next call to Next; retain
			// before handing it downstream.
			rec.Retain()
			n++

			select {
			case batches <- rec:
			case <-ctx.Done():
				rec.Release()
				return
			}
		}

		if err := rr.Err(); err != nil {
			errs <- errors.Wrap(err, errors.ErrorTypeData, "failed to read parquet batch").
				WithDetail("path", s.path)
			return
		}

		s.logger.Debug("parquet source exhausted", zap.Int("batches", n))
	}()

	return &BatchStream{Batches: batches, Errors: errs}, nil
}

// Close closes the parquet file.
func (s *ParquetSource) Close() error {
	if s.reader != nil {
		return s.reader.Close()
	}
	return nil
}
