// Package retry provides a small context-aware retry helper with backoff
// for transient failures on external calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrMaxAttemptsExceeded is returned when all retry attempts fail.
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	// ErrContextCancelled is returned when the context is cancelled mid-retry.
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
	// Multiplier is the backoff multiplier; 1.0 yields linear waits.
	Multiplier float64
	// IsRetryable decides whether an error is worth retrying. Nil retries
	// every error.
	IsRetryable func(error) bool
}

// DefaultConfig returns the retry configuration used for LLM and webhook
// calls: three attempts with exponential backoff capped at 30s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 350 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Do executes fn with retries and backoff until it succeeds, returns a
// non-retryable error, exhausts attempts, or the context is cancelled.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if cfg.IsRetryable != nil && !cfg.IsRetryable(err) {
			return err
		}

		if attempt < cfg.MaxAttempts {
			delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, cfg.MaxAttempts, lastErr)
}
