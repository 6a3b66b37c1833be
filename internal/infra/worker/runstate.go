package worker

import (
	"sync"
	"time"
)

// RunState is a point-in-time snapshot of the daemon's scheduling state,
// served by the health server's status endpoint.
type RunState struct {
	// SchedulerActive reports whether cron ticks are being delivered.
	SchedulerActive bool

	// ShuttingDown reports whether a graceful shutdown has begun.
	ShuttingDown bool

	// CronExpression and Timezone are the schedule in effect.
	CronExpression string
	Timezone       string

	// LastRunStartedAt is when the most recent job run began. Zero until
	// the first run fires.
	LastRunStartedAt time.Time
}

// StateTracker records run-state transitions for status reporting.
// Safe for concurrent use.
type StateTracker struct {
	mu    sync.RWMutex
	state RunState
}

// NewStateTracker creates an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{}
}

// Snapshot returns a copy of the current state.
func (t *StateTracker) Snapshot() RunState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// SetSchedule records the cron expression and timezone in effect.
func (t *StateTracker) SetSchedule(expression, timezone string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.CronExpression = expression
	t.state.Timezone = timezone
}

// SetSchedulerActive flips the scheduler-active flag.
func (t *StateTracker) SetSchedulerActive(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.SchedulerActive = active
}

// SetShuttingDown flips the shutting-down flag.
func (t *StateTracker) SetShuttingDown(shuttingDown bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.ShuttingDown = shuttingDown
}

// MarkRunStarted stamps the start of a job run.
func (t *StateTracker) MarkRunStarted(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.LastRunStartedAt = at
}
