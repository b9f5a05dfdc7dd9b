package circuitbreaker

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeClock lets tests move past the cooldown without sleeping
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures uint32) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := New("graph-profile", maxFailures, time.Minute, quietLogger())
	cb.now = clock.Now
	return cb, clock
}

func fail(ctx context.Context) error    { return errUpstream }
func succeed(ctx context.Context) error { return nil }

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF_OPEN"},
		{State(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestExecute_OpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsCircuitBreakerError(err))
	assert.False(t, called)
	assert.Equal(t, "circuit breaker 'graph-profile' is OPEN", err.Error())
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestExecute_HalfOpenProbe(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		cb, clock := newTestBreaker(1)
		ctx := context.Background()

		_ = cb.Execute(ctx, fail)
		require.Equal(t, StateOpen, cb.GetState())

		clock.Advance(time.Minute)
		require.NoError(t, cb.Execute(ctx, succeed))
		assert.Equal(t, StateClosed, cb.GetState())
	})

	t.Run("failure reopens", func(t *testing.T) {
		cb, clock := newTestBreaker(1)
		ctx := context.Background()

		_ = cb.Execute(ctx, fail)
		clock.Advance(time.Minute)
		assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
		assert.Equal(t, StateOpen, cb.GetState())

		assert.True(t, IsCircuitBreakerError(cb.Execute(ctx, succeed)))
	})
}

func TestExecute_SingleProbeWhileHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Minute)

	release := make(chan struct{})
	probing := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(ctx context.Context) error {
			close(probing)
			<-release
			return nil
		})
	}()

	<-probing
	assert.True(t, IsCircuitBreakerError(cb.Execute(ctx, succeed)))
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestWithFailurePredicate(t *testing.T) {
	errClient := errors.New("bad request")
	cb, _ := newTestBreaker(1)
	cb.WithFailurePredicate(func(err error) bool { return !errors.Is(err, errClient) })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func(ctx context.Context) error { return errClient }), errClient)
	}
	assert.Equal(t, StateClosed, cb.GetState())

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestExecute_Concurrent(t *testing.T) {
	cb, _ := newTestBreaker(1000)
	ctx := context.Background()

	var calls int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(ctx, func(ctx context.Context) error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), atomic.LoadInt32(&calls))
	assert.Equal(t, StateClosed, cb.GetState())
}
