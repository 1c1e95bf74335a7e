// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures the per-candidate retry loop.
type RetryConfig struct {
	// MaxRetries is the retry ceiling per candidate (not counting the
	// initial attempt).
	MaxRetries int

	// BackoffBase is the first retry delay; each retry doubles it.
	BackoffBase time.Duration

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration

	// Jitter adds +/- this fraction of randomness to each delay.
	Jitter float64

	// RetryIf classifies an error as retryable.
	RetryIf func(err error) bool
}

// DefaultRetryConfig returns the standard retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  2,
		BackoffBase: 100 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		Jitter:      0.1,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.BackoffBase <= 0 {
		c.BackoffBase = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	return c
}

// retryWithBackoff runs fn with exponential backoff, honoring context
// cancellation between attempts.
func retryWithBackoff[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	cfg = cfg.withDefaults()

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return zero, err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		backoff := cfg.BackoffBase << uint(attempt)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
		if cfg.Jitter > 0 {
			delta := float64(backoff) * cfg.Jitter
			backoff = time.Duration(float64(backoff) + (rand.Float64()*2*delta - delta))
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return zero, lastErr
}
