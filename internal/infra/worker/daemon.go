package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// ErrSchedulingDisabled is returned when the daemon starts with
// scheduling turned off. A daemon without a scheduler has nothing to do,
// so this is fail-fast rather than an idle process.
var ErrSchedulingDisabled = errors.New("scheduling disabled, daemon refusing to start")

// Daemon ties the scheduler, the health server, and signal handling into
// one long-running process. Its lifecycle is
// idle, starting, active, shutting down, stopped; Run drives the whole
// thing and blocks until shutdown completes.
type Daemon struct {
	cfg       Config
	job       Job
	scheduler *Scheduler
	health    *HealthServer
	tracker   *StateTracker

	state    atomic.Int32
	stopping atomic.Bool
	stopCh   chan struct{}
}

// NewDaemon creates a daemon running job per the configuration.
func NewDaemon(cfg Config, job Job, metrics *Metrics) *Daemon {
	tracker := NewStateTracker()

	// Every run, scheduled or startup, stamps its start time for the
	// status endpoint.
	tracked := func(ctx context.Context) error {
		tracker.MarkRunStarted(time.Now())
		return job(ctx)
	}

	return &Daemon{
		cfg:       cfg,
		job:       tracked,
		scheduler: NewScheduler(tracked, cfg.JobTimeout, metrics),
		health:    NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), tracker),
		tracker:   tracker,
		stopCh:    make(chan struct{}),
	}
}

// Run starts the daemon and blocks until a stop signal, context
// cancellation, or an explicit Stop. It returns an error when startup
// fails; a clean shutdown returns nil.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(DaemonIdle), int32(DaemonStarting)) {
		return fmt.Errorf("daemon already started (state %s)", DaemonState(d.state.Load()))
	}

	if !d.cfg.Enabled {
		d.state.Store(int32(DaemonStopped))
		return ErrSchedulingDisabled
	}

	loc, err := time.LoadLocation(d.cfg.Timezone)
	if err != nil {
		d.state.Store(int32(DaemonStopped))
		return fmt.Errorf("load timezone %q: %w", d.cfg.Timezone, err)
	}

	healthCtx, cancelHealth := context.WithCancel(context.Background())
	defer cancelHealth()
	go func() {
		if err := d.health.Start(healthCtx); err != nil && err != http.ErrServerClosed {
			slog.Error("health server exited", slog.Any("error", err))
		}
	}()

	d.tracker.SetSchedule(d.cfg.Schedule, d.cfg.Timezone)

	if d.cfg.RunOnStart {
		d.runOnce()
	}

	if err := d.scheduler.Start(d.cfg.Schedule, loc); err != nil {
		d.state.Store(int32(DaemonStopped))
		return fmt.Errorf("start scheduler: %w", err)
	}
	d.tracker.SetSchedulerActive(true)

	d.state.Store(int32(DaemonActive))
	d.health.SetReady(true)
	slog.Info("daemon active",
		slog.String("schedule", d.cfg.Schedule),
		slog.String("timezone", d.cfg.Timezone),
		slog.Bool("run_on_start", d.cfg.RunOnStart))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	case <-d.stopCh:
		slog.Info("stop requested, shutting down")
	}

	d.shutdown(cancelHealth)
	return nil
}

// Stop requests a graceful shutdown. Calling Stop more than once is
// harmless; subsequent calls log a warning and return.
func (d *Daemon) Stop() {
	if !d.stopping.CompareAndSwap(false, true) {
		slog.Warn("shutdown already in progress")
		return
	}
	close(d.stopCh)
}

// State reports the daemon's lifecycle state.
func (d *Daemon) State() DaemonState {
	return DaemonState(d.state.Load())
}

// RunState reports the scheduling state served by the status endpoint.
func (d *Daemon) RunState() RunState {
	return d.tracker.Snapshot()
}

// runOnce fires one immediate job run outside the cron schedule. It runs
// before the scheduler starts, so a long startup run cannot overlap the
// first tick's slot.
func (d *Daemon) runOnce() {
	slog.Info("startup run triggered")

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.JobTimeout)
	defer cancel()

	if err := d.job(ctx); err != nil {
		slog.Error("startup run failed", slog.Any("error", err))
	}
}

// shutdown drains the scheduler and the health server in order: mark not
// ready first so probes stop routing to us, then stop tick delivery,
// then close the health listener.
func (d *Daemon) shutdown(cancelHealth context.CancelFunc) {
	d.state.Store(int32(DaemonShuttingDown))
	d.stopping.Store(true)
	d.tracker.SetShuttingDown(true)
	d.health.SetReady(false)

	d.scheduler.Stop()
	d.tracker.SetSchedulerActive(false)
	cancelHealth()

	d.state.Store(int32(DaemonStopped))
	slog.Info("daemon stopped")
}
