// Package metrics provides centralized Prometheus metrics for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Aggregation metrics track feed fetching and normalization.
var (
	// RecordsFetchedTotal counts normalized records by source label.
	RecordsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_records_fetched_total",
			Help: "Total number of records normalized from feeds",
		},
		[]string{"source_label"},
	)

	// SourceFetchErrorsTotal counts sources whose fetch exhausted retries.
	SourceFetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_source_fetch_errors_total",
			Help: "Total number of per-source fetch failures",
		},
		[]string{"source_label"},
	)

	// SourceFetchDuration measures per-source fetch-and-parse time.
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_source_fetch_duration_seconds",
			Help:    "Duration of per-source fetch and parse in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source_label"},
	)
)

// Summarization and write metrics track the external collaborators.
var (
	// BucketsSummarizedTotal counts bucket summarizations by status.
	BucketsSummarizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_buckets_summarized_total",
			Help: "Total number of bucket summarizations by status",
		},
		[]string{"status"},
	)

	// SummarizationDuration measures model-call time per bucket.
	SummarizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_summarization_duration_seconds",
			Help:    "Duration of bucket summarization in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// DocumentsWrittenTotal counts document writes by status.
	DocumentsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_documents_written_total",
			Help: "Total number of output documents written by status",
		},
		[]string{"status"},
	)
)
