package llm

import (
	"context"
	"math"
	"math/rand"
	"time"

	"meridian/internal/domain"
)

// RetryConfig configures the Gateway's retry policy for provider calls
// (spec.md §4.1: "retryable error kinds are retried with exponential
// backoff").
type RetryConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultRetryConfig returns the Gateway's default backoff schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.1,
	}
}

// Retryer retries a provider call while its error classifies as retryable
// per domain.ErrorKind.Retryable (rate_limited, timeout, transport_error).
// Unlike a substring-matched retry policy, retryability here is decided by
// the sentinel the provider wrapped its error in, not by inspecting the
// error string.
type Retryer struct {
	config RetryConfig
}

// NewRetryer creates a Retryer, filling in defaults for zero-valued fields.
func NewRetryer(cfg RetryConfig) *Retryer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.JitterFactor <= 0 {
		cfg.JitterFactor = 0.1
	}
	return &Retryer{config: cfg}
}

// Do runs fn, retrying while the returned error is retryable and the retry
// budget isn't exhausted. Returns the last error once exhausted or once a
// non-retryable error is hit.
func (r *Retryer) Do(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !domain.ClassifyErr(err).Retryable() {
			return err
		}
		if attempt >= r.config.MaxRetries {
			return lastErr
		}

		delay := r.calculateDelay(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * r.config.BaseDelay

	jitter := time.Duration(rand.Float64() * float64(delay) * r.config.JitterFactor)
	if rand.Float64() < 0.5 {
		delay -= jitter
	} else {
		delay += jitter
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}
