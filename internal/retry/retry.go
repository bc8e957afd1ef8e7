// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

// Package retry provides the bounded retry-with-exponential-backoff primitive
// shared by the report producer and the delivery channel.
//
// A Retrier runs an operation up to Policy.MaxAttempts times. Each attempt gets
// its own context deadline (Policy.AttemptTimeout), so a hung call fails that
// attempt instead of blocking the caller. Between attempts it sleeps
// BaseDelay * Multiplier^(n-1), capped at MaxDelay, unless the failed attempt
// carried a RetryAfter hint.
//
// Operations can short-circuit the loop by returning Permanent(err).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vixwatch/internal/metrics"
)

// Policy configures a Retrier.
type Policy struct {
	MaxAttempts    int           `koanf:"max_attempts" validate:"min=1,max=20"`
	BaseDelay      time.Duration `koanf:"base_delay"`
	MaxDelay       time.Duration `koanf:"max_delay"`
	Multiplier     float64       `koanf:"multiplier"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
}

// withDefaults fills zero or invalid fields.
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// Delay returns the backoff to wait after failed attempt n (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retrier runs an operation under a Policy.
type Retrier struct {
	operation string
	policy    Policy
	logger    zerolog.Logger
	sleep     SleepFunc
}

// New creates a Retrier. operation names the call in logs, errors and the
// vixwatch_retry_attempts_total metric.
func New(operation string, policy Policy, logger zerolog.Logger) *Retrier {
	return &Retrier{
		operation: operation,
		policy:    policy.withDefaults(),
		logger:    logger.With().Str("component", "retry").Str("operation", operation).Logger(),
		sleep:     Sleep,
	}
}

// WithSleep replaces the sleep function. Tests use it to record delays without
// waiting.
func (r *Retrier) WithSleep(fn SleepFunc) *Retrier {
	if fn != nil {
		r.sleep = fn
	}
	return r
}

// Policy returns the effective policy.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do runs fn until it succeeds, returns a permanent error, the parent context
// is done, or the attempt budget is spent. attempt is 1-based.
//
// On exhaustion Do returns an *ExhaustedError wrapping the last failure. A
// permanent failure is returned unwrapped from its marker.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var last error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		err := r.runAttempt(ctx, attempt, fn)
		if err == nil {
			metrics.RecordRetryAttempt(r.operation, "success")
			if attempt > 1 {
				r.logger.Info().Int("attempt", attempt).Msg("operation succeeded after retry")
			}
			return nil
		}
		last = err

		var perm *permanentError
		if errors.As(err, &perm) {
			metrics.RecordRetryAttempt(r.operation, "permanent")
			r.logger.Warn().Err(perm.err).Int("attempt", attempt).Msg("permanent failure, not retrying")
			return perm.err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.RecordRetryAttempt(r.operation, "canceled")
			return fmt.Errorf("%s canceled after %d attempt(s): %w", r.operation, attempt, ctxErr)
		}

		metrics.RecordRetryAttempt(r.operation, "failure")

		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.policy.Delay(attempt)
		if hint, ok := retryAfterOf(err); ok {
			delay = hint
		}

		r.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.policy.MaxAttempts).
			Dur("delay", delay).
			Msg("attempt failed, retrying")

		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s canceled during backoff: %w", r.operation, err)
		}
	}

	r.logger.Error().Err(last).Int("attempts", r.policy.MaxAttempts).Msg("all attempts failed")

	return &ExhaustedError{
		Operation: r.operation,
		Attempts:  r.policy.MaxAttempts,
		Last:      unwrapHint(last),
	}
}

// runAttempt executes one attempt under its own deadline.
func (r *Retrier) runAttempt(ctx context.Context, attempt int, fn func(ctx context.Context, attempt int) error) error {
	attemptCtx := ctx
	if r.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
		defer cancel()
	}

	err := fn(attemptCtx, attempt)
	if err == nil {
		return nil
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("attempt timed out after %s: %w", r.policy.AttemptTimeout, err)
	}
	return err
}
