package util

import (
	"context"
	"time"
)

// RetryPolicy describes a bounded exponential backoff schedule. The zero
// value is not usable; construct with DefaultRetryPolicy or fill every field.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt; each subsequent
	// delay doubles.
	BaseDelay time.Duration
	// MaxDelay caps the per-attempt delay. Zero means no cap.
	MaxDelay time.Duration
	// Sleep is the wait function used between attempts. Nil means a real
	// context-aware sleep. Tests inject a recording function here.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy mirrors the provider defaults: 5 attempts starting at
// one second, capped at 30 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns the backoff delay that follows the given zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do calls fn up to p.MaxAttempts times, backing off between attempts.
// A nil retryable treats every error as retryable; otherwise an error for
// which retryable returns false propagates immediately. Returns nil on the
// first successful call, or the last error once attempts are exhausted.
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}

		// Don't sleep after the last failed attempt.
		if attempt < p.MaxAttempts-1 {
			if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
				return serr
			}
		}
	}

	return err
}

// sleepCtx blocks for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
