// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package providers

import (
	"context"
	"time"
)

// Domain tags group providers by the kind of data they serve.
// The classifier maps free-text queries onto these tags and
// the routers enumerate candidates per tag.
type Domain string

const (
	DomainLLM          Domain = "llm"
	DomainCryptoPrice  Domain = "crypto-price"
	DomainStock        Domain = "stock"
	DomainMarket       Domain = "market"
	DomainNews         Domain = "news"
	DomainWeather      Domain = "weather"
	DomainGeocode      Domain = "geocode"
	DomainTranslate    Domain = "translate"
	DomainMedia        Domain = "media"
	DomainMedical      Domain = "medical"
	DomainEncyclopedia Domain = "encyclopedia"
	DomainGeneral      Domain = "general"
)

// UniversalFallbackDomains are consulted regardless of the detected
// domain when a candidate set needs augmentation. Encyclopedic lookup
// and general news can answer almost anything at low fidelity.
var UniversalFallbackDomains = []Domain{DomainEncyclopedia, DomainNews}

// Request is the logical request handed to a provider adapter.
// Adapters map it onto their upstream wire format.
type Request struct {
	// Query is the free-text query or primary lookup key.
	Query string `json:"query"`

	// Params carries domain-specific parameters (coin id, symbol,
	// coordinates, target language, ...).
	Params map[string]any `json:"params,omitempty"`

	// SystemPrompt is the system directive for LLM-backed providers.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Language is the ISO 639-1 response language hint.
	Language string `json:"language,omitempty"`

	// MaxTokens bounds LLM completions (0 = adapter default).
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Result is the normalized outcome of a provider call.
type Result struct {
	// Content is the human-readable payload.
	Content string `json:"content"`

	// Data carries structured fields when the upstream returns them.
	Data map[string]any `json:"data,omitempty"`

	// Provider names the adapter that produced the result.
	Provider string `json:"provider"`

	// Elapsed is the upstream round-trip time.
	Elapsed time.Duration `json:"elapsed"`
}

// Provider is the unified interface for all backend adapters.
// Implementations must be safe for concurrent use. Static metadata
// (name, domain, priority, quota) is immutable once registered; only
// dynamic health state changes, and that lives in the Registry.
type Provider interface {
	// Name returns the unique identifier for this provider instance.
	// Used for routing, quota keys, breaker cells, logging.
	Name() string

	// Domain returns the domain tag this provider serves.
	Domain() Domain

	// Priority orders candidates within a domain (lower first).
	Priority() int

	// DailyQuota is the calendar-day call budget (0 = unlimited).
	DailyQuota() int

	// CredentialPresent reports whether an upstream credential is
	// configured. Credential-optional adapters return true.
	CredentialPresent() bool

	// Call performs one upstream request. The context carries the
	// per-call timeout and cancellation.
	Call(ctx context.Context, req Request) (*Result, error)
}

// CostedProvider is implemented by adapters whose calls consume more
// than one quota unit (for example paged search backends).
type CostedProvider interface {
	Provider

	// QuotaCost returns the ledger increment for one call.
	QuotaCost() int
}

// QuotaCost returns the ledger cost of one call to p (1 by default).
func QuotaCost(p Provider) int {
	if cp, ok := p.(CostedProvider); ok {
		if c := cp.QuotaCost(); c > 0 {
			return c
		}
	}
	return 1
}
