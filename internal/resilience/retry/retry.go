// Package retry provides a single retry executor with exponential backoff
// shared by every external call (feed fetches, model calls, document writes).
// Each call site picks a named Policy; the executor itself is stateless and
// safe for concurrent use.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Policy holds the retry parameters for one class of operation.
// Policies are configuration values: read-only and shared across all
// operations of the same kind.
type Policy struct {
	// MaxAttempts is the number of retries after the first attempt.
	// An operation is invoked at most MaxAttempts+1 times.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// Multiplier is the backoff ratio. The delay before retry n is
	// BaseDelay * Multiplier^(n-1). Zero means 2.
	Multiplier float64

	// AttemptTimeout bounds each individual attempt. Zero disables the
	// per-attempt deadline. A timed-out attempt counts as a failure and
	// is retried like any other transient error.
	AttemptTimeout time.Duration
}

// NetworkPolicy returns the policy used for feed fetches.
func NetworkPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      1 * time.Second,
		Multiplier:     2,
		AttemptTimeout: 15 * time.Second,
	}
}

// ModelPolicy returns the policy used for language-model calls.
// Fewer retries than network fetches due to cost.
func ModelPolicy() Policy {
	return Policy{
		MaxAttempts:    2,
		BaseDelay:      2 * time.Second,
		Multiplier:     2,
		AttemptTimeout: 60 * time.Second,
	}
}

// WritePolicy returns the policy used for document writes.
func WritePolicy() Policy {
	return Policy{
		MaxAttempts:    2,
		BaseDelay:      500 * time.Millisecond,
		Multiplier:     2,
		AttemptTimeout: 30 * time.Second,
	}
}

// DelayFor returns the backoff delay before retry n (n starting at 1).
// The sequence is exactly geometric with ratio Multiplier: no jitter, no cap.
func (p Policy) DelayFor(n int) time.Duration {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(multiplier, float64(n-1)))
}

// ExhaustedError is returned when an operation fails on every attempt.
// It is the only error type that crosses the executor boundary on failure.
type ExhaustedError struct {
	// Op names the operation for logging and diagnosis.
	Op string

	// Attempts is the number of invocations performed.
	Attempts int

	// Err is the last underlying error.
	Err error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs fn under the given policy until it succeeds or the policy is
// exhausted. See DoValue for the full contract.
func Do(ctx context.Context, op string, p Policy, fn func(context.Context) error) error {
	_, err := DoValue(ctx, op, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue runs fn up to p.MaxAttempts+1 times, waiting DelayFor(n) between
// attempts. Each attempt runs under a child context bounded by
// p.AttemptTimeout when set. Intermediate failures log at warn, exhaustion
// at error; logging never changes control flow.
//
// Cancellation of the parent context aborts the backoff wait and surfaces
// as an ExhaustedError wrapping ctx.Err().
func DoValue[T any](ctx context.Context, op string, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.MaxAttempts + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := runAttempt(ctx, p, fn)
		if err == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.String("op", op),
					slog.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, &ExhaustedError{Op: op, Attempts: attempt, Err: ctx.Err()}
		}

		if attempt == attempts {
			break
		}

		delay := p.DelayFor(attempt)
		slog.Warn("operation failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, &ExhaustedError{Op: op, Attempts: attempt, Err: ctx.Err()}
		}
	}

	slog.Error("operation failed, retries exhausted",
		slog.String("op", op),
		slog.Int("attempts", attempts),
		slog.Any("error", lastErr))

	return zero, &ExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

// runAttempt executes one invocation of fn under the per-attempt deadline.
func runAttempt[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	if p.AttemptTimeout > 0 {
		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()
		return fn(attemptCtx)
	}
	return fn(ctx)
}
