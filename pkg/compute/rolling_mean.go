package compute

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tjs392/otters/pkg/errors"
)

// RollingMean appends a windowed mean of one float64 column. The sum is
// maintained incrementally, so each row costs O(1) regardless of window
// size. Rows before the window fills produce NaN.
type RollingMean struct {
	column  string
	window  int
	mem     memory.Allocator
	history []float64
	head    int
	filled  int
	sum     float64
}

// NewRollingMean creates a rolling mean stage over column with the
// given window size.
func NewRollingMean(column string, window int, mem memory.Allocator) (*RollingMean, error) {
	if window < 1 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "rolling mean window must be >= 1, got %d", window)
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &RollingMean{
		column:  column,
		window:  window,
		mem:     mem,
		history: make([]float64, window),
	}, nil
}

// Name identifies the stage and its output column.
func (s *RollingMean) Name() string {
	return fmt.Sprintf("%s_rolling_mean_%d", s.column, s.window)
}

// Process appends the rolling mean column to the batch.
func (s *RollingMean) Process(rec arrow.Record) (arrow.Record, error) {
	col, err := floatColumn(rec, s.column)
	if err != nil {
		return nil, err
	}

	output := make([]float64, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		v := col.Value(i)

		if s.filled == s.window {
			s.sum -= s.history[s.head]
		} else {
			s.filled++
		}
		s.history[s.head] = v
		s.head = (s.head + 1) % s.window
		s.sum += v

		if s.filled == s.window {
			output = append(output, s.sum/float64(s.window))
		} else {
			output = append(output, math.NaN())
		}
	}

	return appendColumn(s.mem, rec, output, s.Name())
}
