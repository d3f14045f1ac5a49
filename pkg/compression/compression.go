// Package compression provides streaming compression support for
// otters file sources and sinks. It wraps a small set of algorithms
// behind plain io.ReadCloser/io.WriteCloser constructors; algorithm
// selection trades speed (lz4, snappy, s2) against ratio (zstd, gzip).
package compression

import (
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/tjs392/otters/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy stream compression
	Snappy Algorithm = "snappy"
	// S2 represents s2 compression (snappy compatible, faster)
	S2 Algorithm = "s2"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
)

// ParseAlgorithm converts a config string into an Algorithm. The empty
// string means no compression.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", None:
		return None, nil
	case Gzip, Snappy, S2, Zstd, LZ4:
		return Algorithm(name), nil
	default:
		return None, errors.Newf(errors.ErrorTypeConfig, "unknown compression algorithm %q", name)
	}
}

// NewReader wraps r with a decompressing reader for the algorithm.
func NewReader(r io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open gzip stream")
		}
		return gr, nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open zstd stream")
		}
		return zr.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown compression algorithm %q", algo)
	}
}

// NewWriter wraps w with a compressing writer for the algorithm. The
// returned writer must be closed to flush trailing frames; closing it
// does not close w.
func NewWriter(w io.Writer, algo Algorithm) (io.WriteCloser, error) {
	switch algo {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case S2:
		return s2.NewWriter(w), nil
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create zstd writer")
		}
		return zw, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown compression algorithm %q", algo)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
