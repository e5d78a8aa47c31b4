package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CodexForgeBR/tandem/internal/ratelimit"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration // default 750ms
	MaxRateLimitWaits int           // max consecutive rate limit waits (default 3)
	RateLimitFallback time.Duration // wait when the reset time is unknown (default 15m)
	OnRetry           func(attempt int, delay time.Duration, err error)
	OnRateLimit       func(info *ratelimit.RateLimitInfo)
}

// RetryWithBackoff retries fn while its error IsRetryable.
// Delays: BaseDelay, BaseDelay*2, BaseDelay*4, ...
// Rate limit errors wait for the reset time and retry without consuming an
// attempt.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 750 * time.Millisecond
	}
	if cfg.MaxRateLimitWaits <= 0 {
		cfg.MaxRateLimitWaits = 3
	}
	if cfg.RateLimitFallback <= 0 {
		cfg.RateLimitFallback = 15 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	attempt := 0
	delay := cfg.BaseDelay
	rateLimitWaits := 0

	for {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}

		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			rateLimitWaits++
			if rateLimitWaits > cfg.MaxRateLimitWaits {
				return fmt.Errorf("max rate limit waits (%d) exceeded: %w", cfg.MaxRateLimitWaits, err)
			}
			if cfg.OnRateLimit != nil {
				cfg.OnRateLimit(rateLimitErr.Info)
			}
			if rateLimitErr.Info != nil && rateLimitErr.Info.Parseable {
				if waitErr := ratelimit.WaitForReset(ctx, rateLimitErr.Info); waitErr != nil {
					return fmt.Errorf("rate limit wait cancelled: %w", waitErr)
				}
			} else if err := sleep(ctx, cfg.RateLimitFallback); err != nil {
				return err
			}
			continue
		}

		if attempt >= cfg.MaxRetries {
			if cfg.MaxRetries == 0 {
				return err
			}
			return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, err)
		}
		attempt++
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
