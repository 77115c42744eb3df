package genai

import (
	"context"
	"sync"
	"time"

	"github.com/celia-labs/celia-agent/pkg/metrics"
)

const admissionWindow = time.Minute

// RateLimiter bounds outbound calls to a trailing one-minute window. One
// instance is shared by every concurrently running job, so a burst from many
// jobs throttles as a single aggregate stream.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
	nowFn  func() time.Time
}

// NewRateLimiter returns a limiter admitting at most requestsPerMinute calls
// per trailing minute.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	return &RateLimiter{
		limit:  requestsPerMinute,
		window: admissionWindow,
		nowFn:  time.Now,
	}
}

// Acquire blocks until one more admission would not exceed the ceiling, then
// records it. A waiter waking at the window boundary re-validates against
// freshly pruned state instead of trusting the precomputed wait.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	start := r.nowFn()
	for {
		wait, admitted := r.tryAcquire()
		if admitted {
			metrics.ObserveRateLimiterWaitMetric(r.nowFn().Sub(start).Seconds())
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire performs prune, check and record as one atomic section so two
// concurrent callers cannot be jointly admitted above the ceiling.
func (r *RateLimiter) tryAcquire() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFn()
	cutoff := now.Add(-r.window)

	idx := 0
	for idx < len(r.stamps) && !r.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		r.stamps = append(r.stamps[:0], r.stamps[idx:]...)
	}

	if len(r.stamps) < r.limit {
		r.stamps = append(r.stamps, now)
		return 0, true
	}

	// Wait until the oldest retained admission ages out of the window.
	return r.stamps[0].Sub(cutoff), false
}
