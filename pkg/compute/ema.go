package compute

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tjs392/otters/pkg/errors"
)

// EMA appends an exponential moving average of one float64 column.
// alpha = 2 / (span + 1), the standard smoothing factor; the first
// observed value seeds the average.
type EMA struct {
	column  string
	span    int
	alpha   float64
	mem     memory.Allocator
	current float64
	seeded  bool
}

// NewEMA creates an exponential moving average stage over column with
// the given span.
func NewEMA(column string, span int, mem memory.Allocator) (*EMA, error) {
	if span < 1 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "ema span must be >= 1, got %d", span)
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &EMA{
		column: column,
		span:   span,
		alpha:  2.0 / (float64(span) + 1.0),
		mem:    mem,
	}, nil
}

// Name identifies the stage and its output column.
func (s *EMA) Name() string {
	return fmt.Sprintf("%s_ema_%d", s.column, s.span)
}

// Process appends the EMA column to the batch.
func (s *EMA) Process(rec arrow.Record) (arrow.Record, error) {
	col, err := floatColumn(rec, s.column)
	if err != nil {
		return nil, err
	}

	output := make([]float64, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		v := col.Value(i)
		if !s.seeded {
			s.current = v
			s.seeded = true
		} else {
			s.current = s.alpha*v + (1.0-s.alpha)*s.current
		}
		output = append(output, s.current)
	}

	return appendColumn(s.mem, rec, output, s.Name())
}
