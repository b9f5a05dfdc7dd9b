package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"messengerhub/internal/models"
)

// BackoffConfig contains configuration for exponential backoff
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay" validate:"min=10ms,max=10s"`
	MaxDelay     time.Duration `json:"max_delay" validate:"min=100ms,max=5m"`
	Multiplier   float64       `json:"multiplier" validate:"min=1.0,max=10.0"`
	MaxAttempts  int           `json:"max_attempts" validate:"min=1,max=20"`
	Jitter       bool          `json:"jitter"`
}

// DefaultBackoffConfig returns the configuration used for store connects
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  3,
		Jitter:       true,
	}
}

// FromRetryConfig builds a backoff configuration from the application retry settings.
// Zero values keep the defaults.
func FromRetryConfig(cfg models.RetryConfig) BackoffConfig {
	bc := DefaultBackoffConfig()
	if cfg.InitialBackoffMs > 0 {
		bc.InitialDelay = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		bc.MaxDelay = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	if cfg.MaxAttempts > 0 {
		bc.MaxAttempts = cfg.MaxAttempts
	}
	return bc
}

// Backoff implements exponential backoff with optional jitter
type Backoff struct {
	config BackoffConfig
}

// NewBackoff creates a new exponential backoff instance
func NewBackoff(config BackoffConfig) *Backoff {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Backoff{
		config: config,
	}
}

// Retry executes the operation with exponential backoff retry logic
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	return b.RetryWithPredicate(ctx, operation, func(error) bool { return true })
}

// RetryWithPredicate executes the operation with exponential backoff, stopping early on errors isRetryable rejects
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		// Don't wait after the last attempt
		if attempt == b.config.MaxAttempts {
			break
		}

		timer := time.NewTimer(b.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// calculateDelay computes the delay for the given attempt with exponential backoff and optional jitter
func (b *Backoff) calculateDelay(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= b.config.Multiplier
	}

	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}

	// +/-25% jitter
	if b.config.Jitter {
		jitter := delay * 0.25
		delay += (rand.Float64() - 0.5) * 2 * jitter

		if delay < 0 {
			delay = float64(b.config.InitialDelay)
		}
		if delay > float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
		}
	}

	return time.Duration(delay)
}
