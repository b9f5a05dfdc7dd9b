package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"messengerhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  attempts,
	}
}

func TestBackoff_RetrySucceedsAfterFailures(t *testing.T) {
	b := NewBackoff(fastConfig(3))
	calls := 0

	err := b.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoff_RetryReturnsLastError(t *testing.T) {
	b := NewBackoff(fastConfig(2))
	calls := 0

	err := b.Retry(context.Background(), func() error {
		calls++
		return errors.New("still down")
	})

	require.Error(t, err)
	assert.Equal(t, "still down", err.Error())
	assert.Equal(t, 2, calls)
}

func TestBackoff_RetryWithPredicateStopsOnPermanentError(t *testing.T) {
	b := NewBackoff(fastConfig(5))
	permanent := errors.New("bad credentials")
	calls := 0

	err := b.RetryWithPredicate(context.Background(), func() error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestBackoff_RetryHonorsCancellation(t *testing.T) {
	b := NewBackoff(BackoffConfig{InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 1, MaxAttempts: 5})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := b.Retry(ctx, func() error {
		calls++
		cancel()
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoff_DelayGrowsAndCaps(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	assert.Equal(t, 100*time.Millisecond, b.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.calculateDelay(2))
	assert.Equal(t, 300*time.Millisecond, b.calculateDelay(3))
	assert.Equal(t, 300*time.Millisecond, b.calculateDelay(10))
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   1,
		MaxAttempts:  3,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		d := b.calculateDelay(1)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestFromRetryConfig(t *testing.T) {
	bc := FromRetryConfig(models.RetryConfig{InitialBackoffMs: 50, MaxBackoffMs: 400, MaxAttempts: 7})
	assert.Equal(t, 50*time.Millisecond, bc.InitialDelay)
	assert.Equal(t, 400*time.Millisecond, bc.MaxDelay)
	assert.Equal(t, 7, bc.MaxAttempts)

	defaults := FromRetryConfig(models.RetryConfig{})
	assert.Equal(t, DefaultBackoffConfig(), defaults)
}
