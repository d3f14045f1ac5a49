package compute

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tjs392/otters/pkg/errors"
)

// VWAP appends a volume-weighted average price over a trailing window,
// computed from a price column and a volume column. Rows before the
// window fills, and windows whose volume sums to zero, produce NaN.
type VWAP struct {
	priceColumn  string
	volumeColumn string
	window       int
	mem          memory.Allocator

	// ring of (price*volume, volume) pairs
	pv     []float64
	vol    []float64
	head   int
	filled int
}

// NewVWAP creates a volume-weighted average price stage over the given
// price and volume columns.
func NewVWAP(priceColumn, volumeColumn string, window int, mem memory.Allocator) (*VWAP, error) {
	if window < 1 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "vwap window must be >= 1, got %d", window)
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &VWAP{
		priceColumn:  priceColumn,
		volumeColumn: volumeColumn,
		window:       window,
		mem:          mem,
		pv:           make([]float64, window),
		vol:          make([]float64, window),
	}, nil
}

// Name identifies the stage and its output column.
func (s *VWAP) Name() string {
	return fmt.Sprintf("vwap_%d", s.window)
}

// Process appends the VWAP column to the batch.
func (s *VWAP) Process(rec arrow.Record) (arrow.Record, error) {
	prices, err := floatColumn(rec, s.priceColumn)
	if err != nil {
		return nil, err
	}
	volumes, err := floatColumn(rec, s.volumeColumn)
	if err != nil {
		return nil, err
	}

	output := make([]float64, 0, prices.Len())
	for i := 0; i < prices.Len(); i++ {
		price := prices.Value(i)
		volume := volumes.Value(i)

		s.pv[s.head] = price * volume
		s.vol[s.head] = volume
		s.head = (s.head + 1) % s.window
		if s.filled < s.window {
			s.filled++
		}

		if s.filled < s.window {
			output = append(output, math.NaN())
			continue
		}

		var pvSum, vSum float64
		for j := 0; j < s.window; j++ {
			pvSum += s.pv[j]
			vSum += s.vol[j]
		}

		if vSum == 0 {
			output = append(output, math.NaN())
		} else {
			output = append(output, pvSum/vSum)
		}
	}

	return appendColumn(s.mem, rec, output, s.Name())
}
