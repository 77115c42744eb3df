package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetryer(cfg RetryConfig) (*Retryer, *[]time.Duration) {
	delays := []time.Duration{}
	r := NewRetryer(cfg, nil)
	r.sleepFn = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return r, &delays
}

func TestRetryerBackoffSequence(t *testing.T) {
	r, delays := newTestRetryer(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	})

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestRetryerDelayCap(t *testing.T) {
	r, delays := newTestRetryer(RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    2 * time.Second,
		Multiplier:  10.0,
	})

	_ = r.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("timeout")
	})

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 2 * time.Second}, *delays)
}

func TestRetryerFatalShortCircuit(t *testing.T) {
	r, delays := newTestRetryer(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	})

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("401: Invalid API key provided")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "fatal errors must not consume remaining attempts")
	assert.Empty(t, *delays)

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 1, retryErr.Attempts)
}

func TestRetryerExhaustionAggregatesFailure(t *testing.T) {
	r, _ := newTestRetryer(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	})

	cause := errors.New("service unavailable")
	err := r.Do(context.Background(), func(ctx context.Context) error {
		return cause
	})

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 3, retryErr.Attempts)
	assert.ErrorIs(t, err, cause)
}

func TestRetryerTypedClassificationWins(t *testing.T) {
	r, _ := newTestRetryer(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0})

	// The message matches a fatal pattern, but the typed wrapper marks it
	// transient and must win.
	calls := 0
	_ = r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &TransientError{Err: errors.New("authentication service timed out")}
	})
	assert.Equal(t, 3, calls)
}

func TestRetryerAcquiresAdmissionPerAttempt(t *testing.T) {
	limiter := NewRateLimiter(100)
	r := NewRetryer(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0}, limiter)
	r.sleepFn = func(ctx context.Context, d time.Duration) error { return nil }

	_ = r.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("flaky")
	})

	limiter.mu.Lock()
	admissions := len(limiter.stamps)
	limiter.mu.Unlock()
	assert.Equal(t, 3, admissions, "every attempt passes through admission control")
}
