package worker

import (
	"fmt"
	"log/slog"
	"time"

	pkgconfig "feedbrief/internal/pkg/config"
)

// Config controls the worker daemon: whether scheduling is on, when the
// pipeline fires, and where the health endpoint listens.
type Config struct {
	// Enabled turns cron scheduling on. A daemon started with scheduling
	// disabled refuses to start.
	Enabled bool

	// Schedule is the five-field cron expression for pipeline runs.
	Schedule string

	// Timezone is the IANA timezone name cron fires in.
	Timezone string

	// RunOnStart triggers one pipeline run immediately after startup.
	RunOnStart bool

	// JobTimeout caps a single pipeline run.
	JobTimeout time.Duration

	// HealthPort is the health check HTTP port.
	HealthPort int
}

// DefaultConfig returns production defaults: a daily 06:00 UTC run with
// a 30 minute job cap.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Schedule:   "0 6 * * *",
		Timezone:   "UTC",
		RunOnStart: false,
		JobTimeout: 30 * time.Minute,
		HealthPort: 9091,
	}
}

// Validate checks the configuration, collecting all field errors.
func (c *Config) Validate() error {
	var errs []error

	if err := pkgconfig.ValidateCronSchedule(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}
	if err := pkgconfig.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.JobTimeout); err != nil {
		errs = append(errs, fmt.Errorf("job timeout: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration fail-open: each
// invalid value falls back to its default with a warning and a metrics
// increment, so a typo in one variable never keeps the daemon down.
//
// Environment variables:
//   - SCHEDULER_ENABLED: "true" or "false" (default true)
//   - SCHEDULER_CRON: five-field cron expression (default "0 6 * * *")
//   - SCHEDULER_TIMEZONE: IANA timezone name (default "UTC")
//   - SCHEDULER_RUN_ON_START: run once at startup (default false)
//   - SCHEDULER_JOB_TIMEOUT: duration, 1m to 4h (default "30m")
//   - WORKER_HEALTH_PORT: 1024-65535 (default 9091)
func LoadConfigFromEnv(metrics *Metrics) Config {
	cfg := DefaultConfig()
	fallbackApplied := false

	record := func(field, warning string) {
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field)
		slog.Warn("worker configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}

	enabled := pkgconfig.Bool("SCHEDULER_ENABLED", cfg.Enabled)
	cfg.Enabled = enabled.Value
	if enabled.FallbackApplied {
		record("enabled", enabled.Warning)
	}

	schedule := pkgconfig.Validated("SCHEDULER_CRON", cfg.Schedule, pkgconfig.ValidateCronSchedule)
	cfg.Schedule = schedule.Value
	if schedule.FallbackApplied {
		record("schedule", schedule.Warning)
	}

	timezone := pkgconfig.Validated("SCHEDULER_TIMEZONE", cfg.Timezone, pkgconfig.ValidateTimezone)
	cfg.Timezone = timezone.Value
	if timezone.FallbackApplied {
		record("timezone", timezone.Warning)
	}

	runOnStart := pkgconfig.Bool("SCHEDULER_RUN_ON_START", cfg.RunOnStart)
	cfg.RunOnStart = runOnStart.Value
	if runOnStart.FallbackApplied {
		record("run_on_start", runOnStart.Warning)
	}

	jobTimeout := pkgconfig.Duration("SCHEDULER_JOB_TIMEOUT", cfg.JobTimeout, func(d time.Duration) error {
		return pkgconfig.ValidateDurationRange(d, time.Minute, 4*time.Hour)
	})
	cfg.JobTimeout = jobTimeout.Value
	if jobTimeout.FallbackApplied {
		record("job_timeout", jobTimeout.Warning)
	}

	healthPort := pkgconfig.Int("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = healthPort.Value
	if healthPort.FallbackApplied {
		record("health_port", healthPort.Warning)
	}

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return cfg
}
