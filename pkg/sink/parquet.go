package sink

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	parquetcompress "github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/tjs392/otters/pkg/compression"
	"github.com/tjs392/otters/pkg/errors"
)

// ParquetSink writes record batches to a parquet file. The file and
// writer are created lazily on the first batch, because the final
// schema is not known until then: compute stages upstream may have
// appended columns the declared schema never mentions.
type ParquetSink struct {
	path   string
	codec  parquetcompress.Compression
	mem    memory.Allocator
	logger *zap.Logger

	writer *pqarrow.FileWriter

	rowsWritten int64
}

// NewParquetSink creates a parquet file sink with the given compression
// codec.
func NewParquetSink(path string, algo compression.Algorithm, logger *zap.Logger) (*ParquetSink, error) {
	codec, err := parquetCodec(algo)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParquetSink{
		path:   path,
		codec:  codec,
		mem:    memory.NewGoAllocator(),
		logger: logger.With(zap.String("sink", "parquet"), zap.String("path", path)),
	}, nil
}

// Write appends one record batch to the file.
func (s *ParquetSink) Write(_ context.Context, rec arrow.Record) error {
	if s.writer == nil {
		if err := s.open(rec.Schema()); err != nil {
			return err
		}
	}

	if err := s.writer.WriteBuffered(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write parquet batch").
			WithDetail("path", s.path)
	}
	s.rowsWritten += rec.NumRows()
	return nil
}

// Close finalizes the parquet footer. A sink that never received a
// batch closes without creating a file.
func (s *ParquetSink) Close() error {
	if s.writer == nil {
		return nil
	}

	// The writer owns the file handle once it is handed to
	// pqarrow.NewFileWriter; closing the writer closes the file.
	if err := s.writer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finalize parquet file").
			WithDetail("path", s.path)
	}
	s.writer = nil

	s.logger.Info("parquet sink closed", zap.Int64("rows", s.rowsWritten))
	return nil
}

// RowsWritten returns the number of rows written so far.
func (s *ParquetSink) RowsWritten() int64 {
	return s.rowsWritten
}

func (s *ParquetSink) open(schema *arrow.Schema) error {
	f, err := os.Create(s.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet file").
			WithDetail("path", s.path)
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(s.codec),
		parquet.WithAllocator(s.mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(s.mem))

	w, err := pqarrow.NewFileWriter(schema, f, props, arrowProps)
	if err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create parquet writer").
			WithDetail("path", s.path)
	}

	s.writer = w
	return nil
}

// parquetCodec maps a compression algorithm onto a parquet codec.
func parquetCodec(algo compression.Algorithm) (parquetcompress.Compression, error) {
	switch algo {
	case compression.None:
		return parquetcompress.Codecs.Uncompressed, nil
	case compression.Gzip:
		return parquetcompress.Codecs.Gzip, nil
	case compression.Snappy, compression.S2:
		return parquetcompress.Codecs.Snappy, nil
	case compression.Zstd:
		return parquetcompress.Codecs.Zstd, nil
	case compression.LZ4:
		return parquetcompress.Codecs.Lz4Raw, nil
	default:
		return parquetcompress.Codecs.Uncompressed,
			errors.Newf(errors.ErrorTypeConfig, "no parquet codec for compression %q", algo)
	}
}
