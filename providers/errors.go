// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error kinds surfaced by the core. Per-provider and per-leg failures
// are reduced to these close to the source; the pipeline surfaces only
// ErrNoProviderAvailable, ErrInputInvalid and success.
var (
	// ErrProviderTransient marks network failures, timeouts and 5xx.
	// Recovered locally by retry, then by failover.
	ErrProviderTransient = errors.New("provider transient failure")

	// ErrProviderPermanent marks 4xx (other than 429) and credential
	// rejection. Never retried; the breaker is not tripped.
	ErrProviderPermanent = errors.New("provider permanent failure")

	// ErrQuotaExhausted means the ledger denied the call.
	ErrQuotaExhausted = errors.New("daily quota exhausted")

	// ErrBreakerOpen is a synthetic failure raised without calling
	// the provider.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrNoProviderAvailable means every candidate was exhausted.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrAggregatorEmpty means a fan-out produced no successful leg.
	ErrAggregatorEmpty = errors.New("aggregation produced no data")

	// ErrInputInvalid means sanitization failed a hard check.
	ErrInputInvalid = errors.New("invalid input")
)

// APIError carries upstream HTTP status for retry classification.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether the upstream status warrants a retry.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// Unwrap maps the API error onto the coarse error kinds so callers can
// use errors.Is without inspecting status codes.
func (e *APIError) Unwrap() error {
	if e.IsRetryable() {
		return ErrProviderTransient
	}
	return ErrProviderPermanent
}

// IsTransient classifies an adapter error as retryable. Network errors,
// context deadlines and retryable API statuses count; everything else is
// treated as permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderTransient) {
		return true
	}
	if errors.Is(err, ErrProviderPermanent) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	// Unknown adapter errors are treated as transient so a flaky
	// upstream does not silently become a permanent skip.
	return true
}
