// Package worker runs the digest pipeline on a cron schedule and hosts
// the daemon lifecycle: startup, health and metrics endpoints, signal
// handling, and graceful shutdown.
package worker

// SchedulerState is the lifecycle state of the cron scheduler.
type SchedulerState int32

const (
	// SchedulerStopped means no cron entries are active.
	SchedulerStopped SchedulerState = iota

	// SchedulerRunning means the scheduler is firing ticks.
	SchedulerRunning
)

func (s SchedulerState) String() string {
	switch s {
	case SchedulerStopped:
		return "stopped"
	case SchedulerRunning:
		return "running"
	default:
		return "unknown"
	}
}

// DaemonState is the lifecycle state of the daemon.
type DaemonState int32

const (
	DaemonIdle DaemonState = iota
	DaemonStarting
	DaemonActive
	DaemonShuttingDown
	DaemonStopped
)

func (s DaemonState) String() string {
	switch s {
	case DaemonIdle:
		return "idle"
	case DaemonStarting:
		return "starting"
	case DaemonActive:
		return "active"
	case DaemonShuttingDown:
		return "shutting_down"
	case DaemonStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
