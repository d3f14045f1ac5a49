package compute

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tjs392/otters/pkg/errors"
)

// ZScore appends the standard score of one float64 column relative to a
// trailing lookback window, using the sample standard deviation (n-1).
// Rows before the window fills produce NaN; a zero deviation maps to 0.
type ZScore struct {
	column   string
	lookback int
	mem      memory.Allocator
	history  []float64
	head     int
	filled   int
}

// NewZScore creates a z-score stage over column with the given
// lookback window.
func NewZScore(column string, lookback int, mem memory.Allocator) (*ZScore, error) {
	if lookback < 2 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "zscore lookback must be >= 2, got %d", lookback)
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &ZScore{
		column:   column,
		lookback: lookback,
		mem:      mem,
		history:  make([]float64, lookback),
	}, nil
}

// Name identifies the stage and its output column.
func (s *ZScore) Name() string {
	return fmt.Sprintf("%s_zscore_%d", s.column, s.lookback)
}

// Process appends the z-score column to the batch.
func (s *ZScore) Process(rec arrow.Record) (arrow.Record, error) {
	col, err := floatColumn(rec, s.column)
	if err != nil {
		return nil, err
	}

	output := make([]float64, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		v := col.Value(i)

		s.history[s.head] = v
		s.head = (s.head + 1) % s.lookback
		if s.filled < s.lookback {
			s.filled++
		}

		if s.filled < s.lookback {
			output = append(output, math.NaN())
			continue
		}

		// O(lookback) per row; fine for the window sizes this is
		// used with.
		var sum float64
		for _, x := range s.history {
			sum += x
		}
		mean := sum / float64(s.lookback)

		var variance float64
		for _, x := range s.history {
			variance += (x - mean) * (x - mean)
		}
		std := math.Sqrt(variance / float64(s.lookback-1))

		if std == 0 {
			output = append(output, 0)
		} else {
			output = append(output, (v-mean)/std)
		}
	}

	return appendColumn(s.mem, rec, output, s.Name())
}
