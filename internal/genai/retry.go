package genai

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig tunes the exponential backoff policy. These are
// process-lifetime values, not persisted.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

// Retryer executes fallible operations with exponential backoff. Every
// attempt, including the first, passes through the shared rate limiter:
// retries are not exempt from admission control.
type Retryer struct {
	cfg     RetryConfig
	limiter *RateLimiter
	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewRetryer(cfg RetryConfig, limiter *RateLimiter) *Retryer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	return &Retryer{
		cfg:     cfg,
		limiter: limiter,
		sleepFn: sleepContext,
	}
}

// Do runs op up to MaxAttempts times. Fatal errors abort immediately without
// consuming the remaining attempts. The returned error is always a
// *RetryError carrying the attempt count and the last cause; Do never
// swallows failure.
func (r *Retryer) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.backoffDelay(attempt - 1)
			zap.S().Named("genai").Debugf("retrying in %s (attempt %d/%d): %v", delay, attempt, r.cfg.MaxAttempts, lastErr)
			if err := r.sleepFn(ctx, delay); err != nil {
				return &RetryError{Attempts: attempt - 1, Err: err}
			}
		}

		if r.limiter != nil {
			if err := r.limiter.Acquire(ctx); err != nil {
				return &RetryError{Attempts: attempt - 1, Err: err}
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			zap.S().Named("genai").Warnf("non-retryable error on attempt %d: %v", attempt, err)
			return &RetryError{Attempts: attempt, Err: err}
		}
	}

	return &RetryError{Attempts: r.cfg.MaxAttempts, Err: lastErr}
}

// backoffDelay returns the delay before attempt k+1:
// min(BaseDelay * Multiplier^(k-1), MaxDelay).
func (r *Retryer) backoffDelay(k int) time.Duration {
	delay := time.Duration(float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Multiplier, float64(k-1)))
	if delay > r.cfg.MaxDelay {
		return r.cfg.MaxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
