package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/tjs392/otters/pkg/batch"
	"github.com/tjs392/otters/pkg/compression"
	"github.com/tjs392/otters/pkg/errors"
)

// maxLineBytes caps a single NDJSON line.
const maxLineBytes = 16 * 1024 * 1024

// NDJSONSource reads newline-delimited JSON rows from a file,
// optionally decompressing the stream first. Numbers are decoded with
// UseNumber and narrowed to int64 when integral, so integer columns
// survive the trip through JSON.
type NDJSONSource struct {
	path   string
	algo   compression.Algorithm
	logger *zap.Logger

	file *os.File
	rc   interface{ Close() error }
}

// NewNDJSONSource creates an NDJSON file source.
func NewNDJSONSource(path string, algo compression.Algorithm, logger *zap.Logger) *NDJSONSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NDJSONSource{
		path:   path,
		algo:   algo,
		logger: logger.With(zap.String("source", "ndjson"), zap.String("path", path)),
	}
}

// Read opens the file and starts streaming rows.
func (s *NDJSONSource) Read(ctx context.Context) (*RowStream, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open ndjson file").
			WithDetail("path", s.path)
	}
	s.file = f

	rc, err := compression.NewReader(f, s.algo)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.rc = rc

	rows := make(chan batch.Row, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(rows)
		defer close(errs)

		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			row := make(batch.Row)
			dec := gojson.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			if err := dec.Decode(&row); err != nil {
				errs <- errors.Wrap(err, errors.ErrorTypeData, "malformed ndjson line").
					WithDetail("path", s.path).
					WithDetail("line", line)
				return
			}
			narrowNumbers(row)

			select {
			case rows <- row:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- errors.Wrap(err, errors.ErrorTypeFile, "failed to read ndjson file").
				WithDetail("path", s.path)
			return
		}

		s.logger.Debug("ndjson source exhausted", zap.Int("lines", line))
	}()

	return &RowStream{Rows: rows, Errors: errs}, nil
}

// Close closes the underlying file and decompressor.
func (s *NDJSONSource) Close() error {
	if s.rc != nil {
		s.rc.Close()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// narrowNumbers rewrites json.Number values in place: integral numbers
// become int64, everything else float64. Without this every JSON number
// would arrive as float64 and integer columns would reject them.
func narrowNumbers(row batch.Row) {
	for k, v := range row {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			row[k] = i
			continue
		}
		if f, err := n.Float64(); err == nil {
			row[k] = f
		}
	}
}
