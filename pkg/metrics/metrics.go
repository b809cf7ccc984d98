// Package metrics exposes Prometheus metrics for ETL runs: rows read,
// filtered and loaded per source, decode fallbacks, executed transforms and
// stage durations.
//
// # Basic Usage
//
//	metrics.Rows.WithLabelValues("people.csv", metrics.OutcomeLoaded).Add(float64(n))
//
//	timer := metrics.NewTimer(metrics.StageIngest)
//	defer timer.ObserveDuration()
//
// Metrics are registered with the default registry on package init and never
// affect the result of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row outcomes
const (
	OutcomeRead     = "read"
	OutcomeFiltered = "filtered"
	OutcomeLoaded   = "loaded"
)

// Pipeline stages
const (
	StageIngest    = "ingest"
	StageTransform = "transform"
	StageFinalize  = "finalize"
	StageExport    = "export"
)

var (
	// Rows counts data rows per source file and outcome
	Rows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_rows_total",
			Help: "Data rows by source file and outcome (read, filtered, loaded)",
		},
		[]string{"source", "outcome"},
	)

	// DecodeFallbacks counts cells that were not valid UTF-8
	DecodeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_decode_fallbacks_total",
			Help: "Cells decoded with a fallback encoding",
		},
		[]string{"encoding"},
	)

	// TransformsExecuted counts executed transforms by action
	TransformsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_transforms_executed_total",
			Help: "Transforms executed by action",
		},
		[]string{"action"},
	)

	// ColumnsGenerated counts columns produced by transforms by action
	ColumnsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_columns_generated_total",
			Help: "Columns generated by transforms by action",
		},
		[]string{"action"},
	)

	// StageDuration observes the wall time of each pipeline stage
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "etl_stage_duration_seconds",
			Help: "Duration of pipeline stages in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.01,  // 10ms
				0.1,   // 100ms
				1,     // 1s
				10,    // 10s
				60,    // 1m
			},
		},
		[]string{"stage"},
	)

	// Failures counts failed stages by error type
	Failures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_failures_total",
			Help: "Failed pipeline stages by stage and error type",
		},
		[]string{"stage", "type"},
	)
)

// Timer measures the duration of a stage.
type Timer struct {
	start time.Time
	stage string
}

// NewTimer starts a timer for stage.
func NewTimer(stage string) *Timer {
	return &Timer{
		start: time.Now(),
		stage: stage,
	}
}

// Stop returns the elapsed time without recording it.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in StageDuration and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	StageDuration.WithLabelValues(t.stage).Observe(d.Seconds())
	return d
}

// WriteTextfile dumps every registered metric to path in the Prometheus text
// format, for node-exporter style collection after a batch run.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
