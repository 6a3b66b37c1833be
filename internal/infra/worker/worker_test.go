package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// promauto registers with the default registry, so the package shares one
// metrics instance across tests.
var testMetrics = NewMetrics()

func noopJob(context.Context) error { return nil }

// messageCountHandler counts log records per message, for asserting how
// often the daemon emits a given line.
type messageCountHandler struct {
	slog.Handler
	mu     sync.Mutex
	counts map[string]int
}

func newMessageCountHandler() *messageCountHandler {
	return &messageCountHandler{
		Handler: slog.NewTextHandler(io.Discard, nil),
		counts:  map[string]int{},
	}
}

func (h *messageCountHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	h.counts[r.Message]++
	h.mu.Unlock()
	return h.Handler.Handle(ctx, r)
}

func (h *messageCountHandler) count(message string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[message]
}

func TestSchedulerStart_InvalidSchedule(t *testing.T) {
	s := NewScheduler(noopJob, time.Minute, testMetrics)

	err := s.Start("not-a-cron", time.UTC)

	require.ErrorIs(t, err, ErrInvalidSchedule)
	assert.Equal(t, SchedulerStopped, s.State())
}

func TestSchedulerStart_ValidSchedule(t *testing.T) {
	s := NewScheduler(noopJob, time.Minute, testMetrics)

	require.NoError(t, s.Start("*/5 * * * *", time.UTC))
	assert.Equal(t, SchedulerRunning, s.State())

	s.Stop()
	assert.Equal(t, SchedulerStopped, s.State())
}

func TestSchedulerStart_AlreadyRunning(t *testing.T) {
	s := NewScheduler(noopJob, time.Minute, testMetrics)
	require.NoError(t, s.Start("*/5 * * * *", time.UTC))
	defer s.Stop()

	assert.Error(t, s.Start("*/5 * * * *", time.UTC))
}

func TestSchedulerStop_Idempotent(t *testing.T) {
	s := NewScheduler(noopJob, time.Minute, testMetrics)
	require.NoError(t, s.Start("*/5 * * * *", time.UTC))

	s.Stop()
	s.Stop()
	assert.Equal(t, SchedulerStopped, s.State())
}

func TestSchedulerTick_ContainsJobFailure(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(func(context.Context) error {
		calls.Add(1)
		return errors.New("job blew up")
	}, time.Minute, testMetrics)

	s.tick()
	s.tick()

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, SchedulerStopped, s.State())
}

func TestSchedulerTick_RecoversPanic(t *testing.T) {
	s := NewScheduler(func(context.Context) error {
		panic("tick panic")
	}, time.Minute, testMetrics)

	assert.NotPanics(t, func() { s.tick() })
}

func TestDaemonRun_SchedulingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	d := NewDaemon(cfg, noopJob, testMetrics)

	err := d.Run(context.Background())

	require.ErrorIs(t, err, ErrSchedulingDisabled)
	assert.Equal(t, DaemonStopped, d.State())
}

func TestDaemonRun_InvalidSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schedule = "every day at noon"
	cfg.HealthPort = 19481
	d := NewDaemon(cfg, noopJob, testMetrics)

	err := d.Run(context.Background())

	require.ErrorIs(t, err, ErrInvalidSchedule)
	assert.Equal(t, DaemonStopped, d.State())
}

func TestDaemonRun_ConcurrentStop(t *testing.T) {
	handler := newMessageCountHandler()
	prev := slog.Default()
	slog.SetDefault(slog.New(handler))
	defer slog.SetDefault(prev)

	cfg := DefaultConfig()
	cfg.HealthPort = 19482
	d := NewDaemon(cfg, noopJob, testMetrics)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return d.State() == DaemonActive
	}, 5*time.Second, 10*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Stop()
		}()
	}
	wg.Wait()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Equal(t, DaemonStopped, d.State())
	assert.Equal(t, 1, handler.count("shutdown already in progress"),
		"exactly one of the racing Stop calls loses the swap")
	assert.Equal(t, 1, handler.count("daemon stopped"),
		"shutdown must run once")
}

func TestDaemonRun_RunOnStart(t *testing.T) {
	var d *Daemon
	var calls atomic.Int32
	var schedulerAtRun atomic.Int32
	job := func(context.Context) error {
		schedulerAtRun.Store(int32(d.scheduler.State()))
		calls.Add(1)
		return nil
	}

	cfg := DefaultConfig()
	cfg.HealthPort = 19483
	cfg.RunOnStart = true
	d = NewDaemon(cfg, job, testMetrics)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, SchedulerStopped, SchedulerState(schedulerAtRun.Load()),
		"startup run must complete before the scheduler starts")

	require.Eventually(t, func() bool {
		return d.State() == DaemonActive
	}, 5*time.Second, 10*time.Millisecond)

	state := d.RunState()
	assert.True(t, state.SchedulerActive)
	assert.False(t, state.ShuttingDown)
	assert.Equal(t, cfg.Schedule, state.CronExpression)
	assert.Equal(t, cfg.Timezone, state.Timezone)
	assert.False(t, state.LastRunStartedAt.IsZero(), "startup run must stamp the run start")

	d.Stop()
	require.NoError(t, <-done)

	state = d.RunState()
	assert.False(t, state.SchedulerActive)
	assert.True(t, state.ShuttingDown)
}

func TestDaemonRun_ContextCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HealthPort = 19484
	d := NewDaemon(cfg, noopJob, testMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		return d.State() == DaemonActive
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, DaemonStopped, d.State())
}

func TestHealthHandlers(t *testing.T) {
	h := NewHealthServer(":0", NewStateTracker())

	rec := httptest.NewRecorder()
	h.handleLiveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.handleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.handleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthStatusHandler(t *testing.T) {
	tracker := NewStateTracker()
	h := NewHealthServer(":0", tracker)

	// Before any run: not ready, no last run stamp.
	rec := httptest.NewRecorder()
	h.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/health/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"not ready","scheduler_active":false,"shutting_down":false}`,
		rec.Body.String())

	tracker.SetSchedule("0 6 * * *", "UTC")
	tracker.SetSchedulerActive(true)
	started := time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC)
	tracker.MarkRunStarted(started)
	h.SetReady(true)

	rec = httptest.NewRecorder()
	h.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/health/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"status": "ok",
		"scheduler_active": true,
		"shutting_down": false,
		"cron_expression": "0 6 * * *",
		"timezone": "UTC",
		"last_run_started_at": "2026-08-23T06:00:00Z"
	}`, rec.Body.String())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Schedule = "nope"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Timezone = "Mars/Olympus"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.HealthPort = 80
	assert.Error(t, bad.Validate())
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"SCHEDULER_ENABLED", "SCHEDULER_CRON", "SCHEDULER_TIMEZONE",
		"SCHEDULER_RUN_ON_START", "SCHEDULER_JOB_TIMEOUT", "WORKER_HEALTH_PORT"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfigFromEnv(testMetrics)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "0 6 * * *", cfg.Schedule)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.False(t, cfg.RunOnStart)
	assert.Equal(t, 30*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 9091, cfg.HealthPort)
}

func TestLoadConfigFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SCHEDULER_CRON", "not-a-cron")
	t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")
	t.Setenv("SCHEDULER_JOB_TIMEOUT", "10s")
	t.Setenv("WORKER_HEALTH_PORT", "80")

	cfg := LoadConfigFromEnv(testMetrics)

	assert.Equal(t, "0 6 * * *", cfg.Schedule)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 9091, cfg.HealthPort)
}

func TestLoadConfigFromEnv_CustomValues(t *testing.T) {
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SCHEDULER_CRON", "*/15 * * * *")
	t.Setenv("SCHEDULER_TIMEZONE", "Asia/Tokyo")
	t.Setenv("SCHEDULER_RUN_ON_START", "true")
	t.Setenv("SCHEDULER_JOB_TIMEOUT", "1h")

	cfg := LoadConfigFromEnv(testMetrics)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "*/15 * * * *", cfg.Schedule)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.True(t, cfg.RunOnStart)
	assert.Equal(t, time.Hour, cfg.JobTimeout)
}
