package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pkgconfig "feedbrief/internal/pkg/config"
)

// Metrics exposes Prometheus metrics for the worker: configuration load
// tracking plus per-run counters for the scheduled pipeline job.
type Metrics struct {
	*pkgconfig.Metrics

	// JobRunsTotal counts scheduled job runs by status
	// (success, failure, panic, skipped).
	JobRunsTotal *prometheus.CounterVec

	// JobDurationSeconds measures scheduled job duration.
	JobDurationSeconds prometheus.Histogram

	// JobSourcesProcessedTotal counts feed sources processed across runs.
	JobSourcesProcessedTotal prometheus.Counter

	// JobLastSuccessTimestamp is the Unix time of the last successful run.
	JobLastSuccessTimestamp prometheus.Gauge
}

// NewMetrics creates and registers the worker metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Metrics: pkgconfig.NewMetrics("worker"),

		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_runs_total",
			Help: "Total scheduled pipeline job runs by status",
		}, []string{"status"}),

		JobDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of scheduled pipeline job runs in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		JobSourcesProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_job_sources_processed_total",
			Help: "Total feed sources processed across all job runs",
		}),

		JobLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful job run",
		}),
	}
}

// RecordJobRun counts one job run with the given status.
func (m *Metrics) RecordJobRun(status string) {
	m.JobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes one job run's duration in seconds.
func (m *Metrics) RecordJobDuration(seconds float64) {
	m.JobDurationSeconds.Observe(seconds)
}

// RecordSourcesProcessed adds to the processed source counter.
func (m *Metrics) RecordSourcesProcessed(count int) {
	m.JobSourcesProcessedTotal.Add(float64(count))
}

// RecordLastSuccess marks now as the last successful run.
func (m *Metrics) RecordLastSuccess() {
	m.JobLastSuccessTimestamp.SetToCurrentTime()
}
