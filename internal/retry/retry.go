// Package retry implements the attempt/backoff policy shared by pipeline
// stages. Delays grow geometrically: baseDelay * multiplier^(attempt-1).
// Errors are classified through services.Retryable, so validation and
// configuration failures abort immediately while transient, timeout, and
// external-tool failures are retried until the attempt budget runs out.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"easel/internal/services"
)

// Policy controls how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// BaseDelay is the wait after the first failed attempt.
	BaseDelay time.Duration
	// Multiplier scales the delay after each failure. Values at or below
	// zero fall back to 2.0.
	Multiplier float64
	// PerAttemptTimeout bounds each attempt when positive.
	PerAttemptTimeout time.Duration
}

const defaultMultiplier = 2.0

// Normalized returns a copy of the policy with usable field values.
func (p Policy) Normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier <= 0 {
		p.Multiplier = defaultMultiplier
	}
	return p
}

// Delay returns the wait before the given attempt (1-based; attempt 1 has no
// preceding wait).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.Normalized()
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := float64(p.BaseDelay)
	for i := 2; i < attempt; i++ {
		delay *= p.Multiplier
	}
	return time.Duration(delay)
}

// Runner executes operations under a policy. The zero value is not usable;
// construct with New.
type Runner struct {
	policy  Policy
	sleeper func(context.Context, time.Duration) error
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSleeper overrides how waits between attempts are performed. Tests use
// this to avoid real sleeps.
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(r *Runner) {
		if sleeper != nil {
			r.sleeper = sleeper
		}
	}
}

// New builds a Runner for the given policy.
func New(policy Policy, opts ...Option) *Runner {
	runner := &Runner{
		policy:  policy.Normalized(),
		sleeper: sleepContext,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Run invokes fn until it succeeds, exhausts the attempt budget, fails with a
// non-retryable error, or the context is canceled. The attempt number passed
// to fn is 1-based.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if delay := r.policy.Delay(attempt); delay > 0 {
			if err := r.sleeper(ctx, delay); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if r.policy.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.policy.PerAttemptTimeout)
		}
		lastErr = fn(attemptCtx, attempt)
		if cancel != nil {
			cancel()
		}
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) && ctx.Err() != nil {
			return lastErr
		}
		if !services.Retryable(lastErr) {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("retry budget exhausted")
	}
	return fmt.Errorf("after %d attempts: %w", r.policy.MaxAttempts, lastErr)
}

// Run is a convenience wrapper constructing a Runner for a single call.
func Run(ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) error) error {
	return New(policy).Run(ctx, fn)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
