// Package metrics provides Prometheus collectors for the batching
// pipeline: rows flowing in, batches flushed and why, and how long each
// flush took. The batcher itself stays metrics-free; the pipeline
// engine records against these collectors around each flush.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flush trigger labels for BatchesFlushed.
const (
	// TriggerSize marks a flush caused by the row-count threshold
	TriggerSize = "size"
	// TriggerInterval marks a flush caused by the time threshold
	TriggerInterval = "interval"
	// TriggerDrain marks a terminal flush-remaining
	TriggerDrain = "drain"
)

var (
	// RowsIn tracks the total number of rows pushed into the batcher.
	// Labels: pipeline
	RowsIn = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otters_rows_in_total",
			Help: "Total number of rows pushed into the batcher",
		},
		[]string{"pipeline"},
	)

	// RowsRejected tracks rows that failed schema conversion at flush.
	// Labels: pipeline
	RowsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otters_rows_rejected_total",
			Help: "Total number of rows rejected by schema conversion",
		},
		[]string{"pipeline"},
	)

	// BatchesFlushed tracks emitted batches by flush trigger.
	// Labels: pipeline, trigger (size/interval/drain)
	BatchesFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otters_batches_flushed_total",
			Help: "Total number of batches flushed, by trigger",
		},
		[]string{"pipeline", "trigger"},
	)

	// BatchRows tracks the row-count distribution of emitted batches.
	// Labels: pipeline
	BatchRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "otters_batch_rows",
			Help:    "Rows per emitted batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"pipeline"},
	)

	// FlushDuration tracks how long flush conversion takes in seconds.
	// Labels: pipeline
	FlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "otters_flush_duration_seconds",
			Help:    "Time spent converting buffered rows into a batch",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"pipeline"},
	)
)

// ObserveFlush records one emitted batch: its trigger, row count and
// conversion duration.
func ObserveFlush(pipeline, trigger string, rows int64, d time.Duration) {
	BatchesFlushed.WithLabelValues(pipeline, trigger).Inc()
	BatchRows.WithLabelValues(pipeline).Observe(float64(rows))
	FlushDuration.WithLabelValues(pipeline).Observe(d.Seconds())
}
