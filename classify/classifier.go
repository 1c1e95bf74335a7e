// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package classify maps a free-text query to a domain tag, a set of
// candidate providers and a search depth. It is a pure lexical
// classifier: identical inputs always yield identical analyses, and it
// never fails — ambiguous input degrades to the general domain at low
// confidence.
package classify

import (
	"strings"

	"github.com/unigate/unigate/providers"
)

// Mode is the search depth governing fan-out width and elaboration.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeStandard Mode = "standard"
	ModeDeep     Mode = "deep"
)

// Intent distinguishes queries needing upstream data from pure chat.
type Intent string

const (
	IntentDataNeeded Intent = "data_needed"
	IntentChatOnly   Intent = "chat_only"
)

// Analysis is the derived, per-request classification record.
type Analysis struct {
	Domain     providers.Domain `json:"domain"`
	Mode       Mode             `json:"mode"`
	Intent     Intent           `json:"intent"`
	Candidates []string         `json:"candidate_providers"`
	Entities   []string         `json:"entities,omitempty"`
	Confidence float64          `json:"confidence"`
}

// Length thresholds for the depth fallback heuristic.
const (
	fastLengthCeiling  = 30
	deepLengthFloor    = 100
	ambiguousThreshold = 0.3
)

// Classifier scores queries against the lexical rule tables and builds
// candidate sets from the registry.
type Classifier struct {
	registry *providers.Registry

	// floors maps (domain, deep?) to the minimum candidate count;
	// short sets are augmented with universal fallbacks.
	deepFloors map[providers.Domain]int
}

// NewClassifier creates a classifier over the given registry.
func NewClassifier(registry *providers.Registry) *Classifier {
	return &Classifier{
		registry: registry,
		deepFloors: map[providers.Domain]int{
			providers.DomainMedical: 15,
			providers.DomainNews:    5,
			providers.DomainGeneral: 3,
		},
	}
}

// Analyze classifies a query. hint, when non-empty, pins the domain and
// skips lexical detection; everything else is still derived.
func (c *Classifier) Analyze(text string, hint providers.Domain) Analysis {
	normalized := strings.ToLower(strings.TrimSpace(text))

	domain, score := c.detectDomain(normalized, hint)
	mode := detectMode(normalized, text)
	confidence := confidenceFor(domain, score, hint)

	intent := IntentDataNeeded
	if domain == providers.DomainGeneral && (mode == ModeFast || score == 0) {
		// Short general chatter usually needs no lookup; callers treat
		// this as a hint, not a contract.
		intent = IntentChatOnly
	}

	return Analysis{
		Domain:     domain,
		Mode:       mode,
		Intent:     intent,
		Candidates: c.candidates(domain, mode),
		Entities:   extractEntities(text),
		Confidence: confidence,
	}
}

// detectDomain runs the lexical layer: keywords score 1, patterns score
// 2; the highest total wins, ties break by rule table order.
func (c *Classifier) detectDomain(normalized string, hint providers.Domain) (providers.Domain, int) {
	if hint != "" && hint != providers.DomainGeneral {
		return hint, 2
	}
	if normalized == "" {
		return providers.DomainGeneral, 0
	}

	best := providers.DomainGeneral
	bestScore := 0
	for _, rule := range domainRules {
		score := 0
		for _, kw := range rule.keywords {
			if hasKeyword(normalized, kw) {
				score++
			}
		}
		for _, p := range rule.patterns {
			if p.MatchString(normalized) {
				score += 2
			}
		}
		if score > bestScore {
			best = rule.domain
			bestScore = score
		}
	}
	return best, bestScore
}

// hasKeyword reports whether kw occurs in text at word boundaries, so
// short tickers like "eth" do not fire inside ordinary words. Phrases
// match as phrases; their internal spaces are part of the match.
func hasKeyword(text, kw string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// detectMode applies the depth layer: trigger phrases first, then the
// length fallback. The thresholds are exact: a 30-char query is not
// fast, a 100-char query is not deep.
func detectMode(normalized, original string) Mode {
	for _, trigger := range deepTriggers {
		if strings.Contains(normalized, trigger) {
			return ModeDeep
		}
	}
	for _, trigger := range fastTriggers {
		trig := strings.TrimSpace(trigger)
		if normalized == trig {
			return ModeFast
		}
		// Prefix matches only at a word boundary so "yesterday" does
		// not trip "yes".
		if strings.HasPrefix(normalized, trig) {
			rest := normalized[len(trig):]
			if rest != "" && (rest[0] < 'a' || rest[0] > 'z') {
				return ModeFast
			}
		}
	}

	length := len(strings.TrimSpace(original))
	switch {
	case length < fastLengthCeiling:
		return ModeFast
	case length > deepLengthFloor:
		return ModeDeep
	default:
		return ModeStandard
	}
}

func confidenceFor(domain providers.Domain, score int, hint providers.Domain) float64 {
	if hint != "" && hint != providers.DomainGeneral {
		return 0.9
	}
	if domain == providers.DomainGeneral || score == 0 {
		return ambiguousThreshold
	}
	confidence := 0.4 + 0.15*float64(score)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}

// candidates returns the domain's providers in priority order,
// augmented with universal fallbacks up to the domain floor. The
// general domain always includes the fallbacks.
func (c *Classifier) candidates(domain providers.Domain, mode Mode) []string {
	names := make([]string, 0, 8)
	seen := make(map[string]bool)

	appendDomain := func(d providers.Domain) {
		for _, p := range c.registry.ByDomain(d) {
			if !seen[p.Name()] {
				seen[p.Name()] = true
				names = append(names, p.Name())
			}
		}
	}

	appendDomain(domain)

	floor := 1
	if mode == ModeDeep {
		if f, ok := c.deepFloors[domain]; ok {
			floor = f
		} else {
			floor = 2
		}
	}

	if domain == providers.DomainGeneral || len(names) < floor {
		for _, fallback := range providers.UniversalFallbackDomains {
			if fallback == domain {
				continue
			}
			appendDomain(fallback)
		}
	}
	return names
}
