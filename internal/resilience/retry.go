package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig is a retry policy. Zero fields take the defaults of
// DefaultRetryConfig.
type RetryConfig struct {
	MaxAttempts    int // total, including the first call
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// JitterFraction randomizes each delay by up to this fraction either way.
	JitterFraction float64
	NoBackoff      bool

	// ShouldRetry reports whether err deserves another attempt. Nil means
	// IsTransient.
	ShouldRetry func(err error) bool
	// OnRetry runs before each retry with the 1-based number of the attempt
	// that failed.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig is the policy for calls to search, reader and model
// providers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Attempts retries any error, immediately, until n calls have been made.
func Attempts(n int) RetryConfig {
	return RetryConfig{MaxAttempts: n, NoBackoff: true, ShouldRetry: AlwaysRetry}
}

// AlwaysRetry retries every error.
func AlwaysRetry(err error) bool {
	return err != nil
}

// Do calls fn until it succeeds or cfg gives up.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal calls fn until it succeeds or cfg gives up, returning the value of
// the successful call. On failure it returns the zero value and the last
// error, never ctx.Err() in its place.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}
	delays := cfg.backOff()

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !retryable(err) || attempt >= cfg.MaxAttempts {
			return zero, err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		wait := delays.NextBackOff()
		if wait == backoff.Stop {
			return zero, err
		}
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// backOff builds the delay sequence for one DoVal call.
func (c RetryConfig) backOff() backoff.BackOff {
	if c.NoBackoff {
		return &backoff.ZeroBackOff{}
	}
	def := DefaultRetryConfig()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = orDuration(c.InitialBackoff, def.InitialBackoff)
	b.MaxInterval = orDuration(c.MaxBackoff, def.MaxBackoff)
	b.Multiplier = def.Multiplier
	if c.Multiplier > 0 {
		b.Multiplier = c.Multiplier
	}
	b.RandomizationFactor = max(c.JitterFraction, 0)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func orDuration(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// RetryLogger logs each retry of operation against service.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
