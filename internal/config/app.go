package config

import (
	"log/slog"
	"time"

	pkgconfig "feedbrief/internal/pkg/config"
	"feedbrief/internal/resilience/retry"
)

// App holds the environment-driven pipeline settings. The sources file
// is loaded separately via LoadSourcesFile.
type App struct {
	// SourcesPath is the location of the sources file.
	SourcesPath string

	// Window is the recency window records must fall into.
	Window time.Duration

	// MaxRecordsPerSource caps the records taken from each feed.
	MaxRecordsPerSource int

	// FallbackLabel names the bucket for records without a label.
	FallbackLabel string

	// OverlapGuard makes the pipeline refuse to start a run while a
	// previous one is still in flight.
	OverlapGuard bool

	// NetworkPolicy governs feed fetch retries.
	NetworkPolicy retry.Policy

	// ModelPolicy governs summarization retries.
	ModelPolicy retry.Policy

	// WritePolicy governs document write retries.
	WritePolicy retry.Policy
}

// LoadApp loads the pipeline settings fail-open, like the worker
// configuration: invalid values fall back to defaults with a warning.
//
// Environment variables:
//   - SOURCES_FILE: sources file path (default "sources.yaml")
//   - AGGREGATE_WINDOW: recency window, 1h to 168h (default "24h")
//   - AGGREGATE_MAX_PER_SOURCE: record cap per source, 1-500 (default 50)
//   - PIPELINE_FALLBACK_LABEL: bucket for unlabeled records (default "general")
//   - PIPELINE_OVERLAP_GUARD: skip overlapping runs (default true)
//   - RETRY_NETWORK_MAX_ATTEMPTS, RETRY_MODEL_MAX_ATTEMPTS,
//     RETRY_WRITE_MAX_ATTEMPTS: retry ceilings per operation kind, 0-10
func LoadApp(metrics *pkgconfig.Metrics) App {
	fallbackApplied := false
	record := func(field, warning string) {
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field)
		slog.Warn("pipeline configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}

	window := pkgconfig.Duration("AGGREGATE_WINDOW", 24*time.Hour, func(d time.Duration) error {
		return pkgconfig.ValidateDurationRange(d, time.Hour, 168*time.Hour)
	})
	if window.FallbackApplied {
		record("window", window.Warning)
	}

	maxPerSource := pkgconfig.Int("AGGREGATE_MAX_PER_SOURCE", 50, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 500)
	})
	if maxPerSource.FallbackApplied {
		record("max_per_source", maxPerSource.Warning)
	}

	overlapGuard := pkgconfig.Bool("PIPELINE_OVERLAP_GUARD", true)
	if overlapGuard.FallbackApplied {
		record("overlap_guard", overlapGuard.Warning)
	}

	app := App{
		SourcesPath:         pkgconfig.String("SOURCES_FILE", "sources.yaml"),
		Window:              window.Value,
		MaxRecordsPerSource: maxPerSource.Value,
		FallbackLabel:       pkgconfig.String("PIPELINE_FALLBACK_LABEL", "general"),
		OverlapGuard:        overlapGuard.Value,
		NetworkPolicy:       loadPolicy("RETRY_NETWORK_MAX_ATTEMPTS", retry.NetworkPolicy(), record),
		ModelPolicy:         loadPolicy("RETRY_MODEL_MAX_ATTEMPTS", retry.ModelPolicy(), record),
		WritePolicy:         loadPolicy("RETRY_WRITE_MAX_ATTEMPTS", retry.WritePolicy(), record),
	}

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return app
}

// loadPolicy overrides a policy's retry ceiling from the environment,
// keeping its delays and timeout.
func loadPolicy(key string, base retry.Policy, record func(field, warning string)) retry.Policy {
	result := pkgconfig.Int(key, base.MaxAttempts, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 0, 10)
	})
	if result.FallbackApplied {
		record(key, result.Warning)
	}
	base.MaxAttempts = result.Value
	return base
}
