// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package router dispatches a logical request over a domain's
// candidate providers in priority order, respecting the quota ledger
// and circuit breakers, with retry-and-failover semantics.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/unigate/unigate/breaker"
	"github.com/unigate/unigate/providers"
	"github.com/unigate/unigate/quota"
)

// Router walks a domain's candidates and returns the first success.
type Router struct {
	registry *providers.Registry
	ledger   *quota.Ledger
	breakers *breaker.Set
	retry    RetryConfig

	// callTimeout bounds one provider attempt.
	callTimeout time.Duration
}

// Config configures the router.
type Config struct {
	Retry       RetryConfig
	CallTimeout time.Duration
}

// New creates a router over the given collaborators.
func New(registry *providers.Registry, ledger *quota.Ledger, breakers *breaker.Set, cfg Config) *Router {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Router{
		registry:    registry,
		ledger:      ledger,
		breakers:    breakers,
		retry:       cfg.Retry,
		callTimeout: cfg.CallTimeout,
	}
}

// Route dispatches req over the domain's candidates. preferred, when
// non-empty and eligible, is tried first. Candidates are observed
// strictly in enumerated order; a candidate is skipped only when the
// ledger denies it or its breaker is open. Transient failures retry
// with backoff before moving on; permanent failures move on at once.
func (r *Router) Route(ctx context.Context, domain providers.Domain, req providers.Request, preferred string) (*providers.Result, error) {
	candidates := r.candidates(domain, preferred)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s: no candidates registered: %w", domain, providers.ErrNoProviderAvailable)
	}

	var skips []string
	for _, p := range candidates {
		name := p.Name()

		if !r.ledger.CanServe(ctx, name) {
			log.Printf("[Router] %s skipped: quota exhausted", name)
			skips = append(skips, name+": quota exhausted")
			continue
		}
		if err := r.breakers.Allow(name); err != nil {
			log.Printf("[Router] %s skipped: breaker open", name)
			skips = append(skips, name+": breaker open")
			continue
		}

		result, err := r.callWithRetry(ctx, p, req)
		if err != nil {
			skips = append(skips, name+": "+err.Error())
			if ctx.Err() != nil {
				// The request itself is dead; stop walking candidates.
				return nil, ctx.Err()
			}
			continue
		}

		r.ledger.Increment(ctx, name, providers.QuotaCost(p))
		return result, nil
	}

	return nil, fmt.Errorf("%s: all candidates exhausted (%s): %w",
		domain, strings.Join(skips, "; "), providers.ErrNoProviderAvailable)
}

// Admits reports whether a provider may be attempted right now:
// registered and available, quota remaining, breaker not open. Fan-out
// callers use it to filter legs before dispatching outside the router.
func (r *Router) Admits(ctx context.Context, name string) bool {
	if !r.registry.Eligible(name) {
		return false
	}
	if !r.ledger.CanServe(ctx, name) {
		log.Printf("[Router] %s skipped: quota exhausted", name)
		return false
	}
	if r.breakers.State(name) == breaker.StateOpen {
		log.Printf("[Router] %s skipped: breaker open", name)
		return false
	}
	return true
}

// RecordUse charges one successful out-of-band call against the
// provider's daily quota and breaker state.
func (r *Router) RecordUse(ctx context.Context, name string) {
	r.breakers.RecordSuccess(name)
	p, err := r.registry.Get(name)
	if err != nil {
		return
	}
	r.ledger.Increment(ctx, name, providers.QuotaCost(p))
}

// candidates enumerates eligible providers in priority order, moving
// the preferred provider to the front when present.
func (r *Router) candidates(domain providers.Domain, preferred string) []providers.Provider {
	list := r.registry.ByDomain(domain)
	if preferred == "" {
		return list
	}
	for i, p := range list {
		if p.Name() == preferred {
			reordered := make([]providers.Provider, 0, len(list))
			reordered = append(reordered, p)
			reordered = append(reordered, list[:i]...)
			reordered = append(reordered, list[i+1:]...)
			return reordered
		}
	}
	return list
}

// callWithRetry wraps one candidate call in breaker bookkeeping and
// retries transient failures. Permanent failures do not trip the
// breaker and are not retried.
func (r *Router) callWithRetry(ctx context.Context, p providers.Provider, req providers.Request) (*providers.Result, error) {
	cfg := r.retry
	cfg.RetryIf = providers.IsTransient

	start := time.Now()
	result, err := retryWithBackoff(ctx, cfg, func(ctx context.Context) (*providers.Result, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()

		res, callErr := p.Call(callCtx, req)
		if callErr != nil {
			if providers.IsTransient(callErr) {
				r.breakers.RecordFailure(p.Name())
			}
			return nil, callErr
		}
		r.breakers.RecordSuccess(p.Name())
		return res, nil
	})
	if err != nil {
		if errors.Is(err, providers.ErrProviderPermanent) {
			log.Printf("[Router] %s permanent failure, moving on: %v", p.Name(), err)
		} else {
			log.Printf("[Router] %s failed after retries: %v", p.Name(), err)
		}
		return nil, err
	}

	result.Provider = p.Name()
	result.Elapsed = time.Since(start)
	return result, nil
}
