package util

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between consecutive provider calls,
// measured from the end of the previous call to the start of the next. The
// interval is shared across all callers so provider-wide quotas are
// respected regardless of which instrument is being fetched.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time // end time of the previous call

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a Pacer with the given minimum inter-call interval.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous Done, or the context is cancelled. A zero interval or a first
// call returns immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	var remaining time.Duration
	if !p.last.IsZero() && p.interval > 0 {
		remaining = p.interval - p.now().Sub(p.last)
	}
	p.mu.Unlock()

	if remaining <= 0 {
		return nil
	}
	return p.sleep(ctx, remaining)
}

// Done records the completion time of a call. The next Wait measures its
// delay from this instant.
func (p *Pacer) Done() {
	p.mu.Lock()
	p.last = p.now()
	p.mu.Unlock()
}
