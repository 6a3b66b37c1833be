package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when the cron expression does not parse.
var ErrInvalidSchedule = errors.New("invalid cron schedule")

// Job is the unit of work the scheduler fires on each tick.
type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron with a two-state lifecycle. Start moves it
// from stopped to running; a schedule that fails to parse leaves it
// stopped. Ticks are fire-and-forget: a slow job never blocks the next
// tick, and job errors and panics are contained to the tick that raised
// them.
type Scheduler struct {
	job        Job
	jobTimeout time.Duration
	metrics    *Metrics

	cron  *cron.Cron
	state atomic.Int32
}

// NewScheduler creates a scheduler that runs job with the given
// per-tick timeout.
func NewScheduler(job Job, jobTimeout time.Duration, metrics *Metrics) *Scheduler {
	return &Scheduler{
		job:        job,
		jobTimeout: jobTimeout,
		metrics:    metrics,
	}
}

// Start parses the schedule and begins firing ticks in the given
// timezone. On a parse failure it returns ErrInvalidSchedule and the
// scheduler stays stopped. Calling Start on a running scheduler is an
// error.
func (s *Scheduler) Start(schedule string, loc *time.Location) error {
	if SchedulerState(s.state.Load()) == SchedulerRunning {
		return fmt.Errorf("scheduler already running")
	}
	if loc == nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, schedule, err)
	}

	s.cron = c
	c.Start()
	s.state.Store(int32(SchedulerRunning))

	slog.Info("scheduler started",
		slog.String("schedule", schedule),
		slog.String("timezone", loc.String()))
	return nil
}

// Stop halts tick delivery and waits for in-flight jobs to return.
// Stopping an already stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	if !s.state.CompareAndSwap(int32(SchedulerRunning), int32(SchedulerStopped)) {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	slog.Info("scheduler stopped")
}

// State reports the current scheduler state.
func (s *Scheduler) State() SchedulerState {
	return SchedulerState(s.state.Load())
}

// tick runs one scheduled job invocation. Errors are logged and counted,
// never propagated; a panic in the job is recovered so a single bad tick
// cannot take the scheduler down.
func (s *Scheduler) tick() {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled job panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			s.metrics.RecordJobRun("panic")
			s.metrics.RecordJobDuration(time.Since(start).Seconds())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if err := s.job(ctx); err != nil {
		slog.Error("scheduled job failed", slog.Any("error", err))
		s.metrics.RecordJobRun("failure")
		s.metrics.RecordJobDuration(time.Since(start).Seconds())
		return
	}

	s.metrics.RecordJobRun("success")
	s.metrics.RecordJobDuration(time.Since(start).Seconds())
	s.metrics.RecordLastSuccess()
}
