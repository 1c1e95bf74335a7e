// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package pipeline chains sanitization, classification, caching,
// routing, aggregation, and validation into the request flow behind
// the HTTP surface.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/unigate/unigate/aggregate"
	"github.com/unigate/unigate/cache"
	"github.com/unigate/unigate/classify"
	"github.com/unigate/unigate/providers"
	"github.com/unigate/unigate/router"
	"github.com/unigate/unigate/validate"
)

// Adaptive cache TTL tiers keyed off validation confidence.
const (
	longTTL    = time.Hour
	defaultTTL = 30 * time.Minute
	shortTTL   = 5 * time.Minute

	highConfidence = 0.8
	lowConfidence  = 0.5
)

// searchNamespace scopes cached universal-search envelopes.
const searchNamespace = "search"

// NoDataMessage is returned when every data leg of an aggregation
// comes back empty. It is a normal response, not an error.
const NoDataMessage = "No data is currently available for this query. The upstream services may be temporarily unreachable; please try again shortly."

// ChatRequest is the logical request into Handle.
type ChatRequest struct {
	Message    string           `json:"message"`
	Language   string           `json:"language,omitempty"`
	DomainHint providers.Domain `json:"domain,omitempty"`
	Preferred  string           `json:"preferred_provider,omitempty"`
}

// ChatResponse is the pipeline's outcome, also the cached form.
type ChatResponse struct {
	Response         string           `json:"response"`
	Provider         string           `json:"provider"`
	Domain           providers.Domain `json:"domain"`
	Mode             classify.Mode    `json:"mode"`
	Cached           bool             `json:"cached"`
	NoData           bool             `json:"no_data,omitempty"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
	Validation       validate.Report  `json:"validation"`
	Sources          []string         `json:"sources,omitempty"`
}

// SearchRequest drives a fan-out across one or more categories.
type SearchRequest struct {
	Query                 string             `json:"query"`
	Categories            []providers.Domain `json:"categories,omitempty"`
	MaxResultsPerCategory int                `json:"max_results_per_category,omitempty"`
	Language              string             `json:"language,omitempty"`
}

// Performance summarizes how a search was served.
type Performance struct {
	Cached      bool  `json:"cached"`
	TotalTimeMs int64 `json:"total_time_ms"`
}

// SearchResponse groups per-category merged results.
type SearchResponse struct {
	Query              string                                 `json:"query"`
	CategoriesSearched []providers.Domain                     `json:"categories_searched"`
	Results            map[providers.Domain]*aggregate.Merged `json:"results_by_category"`
	TotalResults       int                                    `json:"total_results"`
	Performance        Performance                            `json:"performance"`
}

// Config tunes the pipeline.
type Config struct {
	// Persona is the assistant identity injected into LLM prompts.
	Persona string

	// SynthesizeDeep enables LLM synthesis over aggregated context
	// when the query classifies as deep.
	SynthesizeDeep bool
}

// Pipeline owns the end-to-end request flow.
type Pipeline struct {
	registry   *providers.Registry
	classifier *classify.Classifier
	router     *router.Router
	aggregator *aggregate.Aggregator
	validator  *validate.Validator
	cache      *cache.MultiLevel
	config     Config

	now func() time.Time
}

// New wires a pipeline from its collaborators.
func New(registry *providers.Registry, classifier *classify.Classifier, rt *router.Router, agg *aggregate.Aggregator, val *validate.Validator, mlc *cache.MultiLevel, cfg Config) *Pipeline {
	if cfg.Persona == "" {
		cfg.Persona = "You are Unigate, a concise and factual assistant."
	}
	return &Pipeline{
		registry:   registry,
		classifier: classifier,
		router:     rt,
		aggregator: agg,
		validator:  val,
		cache:      mlc,
		config:     cfg,
		now:        time.Now,
	}
}

// Handle runs one chat request through the full flow. The only error
// conditions are invalid input and total provider unavailability;
// everything else degrades into an annotated or no-data response.
func (p *Pipeline) Handle(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := p.now()

	query, err := Sanitize(req.Message)
	if err != nil {
		return nil, err
	}

	analysis := p.classifier.Analyze(query, req.DomainHint)

	fp := cache.Fingerprint(map[string]any{
		"query":    query,
		"domain":   string(analysis.Domain),
		"mode":     string(analysis.Mode),
		"language": req.Language,
	})
	namespace := string(analysis.Domain)

	if raw, ok := p.cache.Get(ctx, namespace, fp); ok {
		var cached ChatResponse
		if err := json.Unmarshal(raw, &cached); err == nil {
			cached.Cached = true
			cached.ProcessingTimeMs = time.Since(start).Milliseconds()
			return &cached, nil
		}
		log.Printf("[Pipeline] discarding undecodable cache entry ns=%s", namespace)
	}

	var resp *ChatResponse
	if p.isChatOnly(analysis) {
		resp, err = p.handleChat(ctx, query, req, analysis)
	} else {
		resp, err = p.handleData(ctx, query, req, analysis)
	}
	if err != nil {
		return nil, err
	}

	resp.Domain = analysis.Domain
	resp.Mode = analysis.Mode
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()

	if !resp.NoData {
		p.store(ctx, namespace, fp, resp)
	}
	return resp, nil
}

// isChatOnly applies the intent hint: the LLM domain is always pure
// chat, and a chat_only classification is honored only when the
// classifier is reasonably confident. Low-confidence chatter still
// runs a data lookup.
func (p *Pipeline) isChatOnly(a classify.Analysis) bool {
	if a.Domain == providers.DomainLLM {
		return true
	}
	return a.Intent == classify.IntentChatOnly && a.Confidence >= 0.5
}

// handleChat answers via an LLM provider with a grounding system
// prompt and no upstream data.
func (p *Pipeline) handleChat(ctx context.Context, query string, req ChatRequest, a classify.Analysis) (*ChatResponse, error) {
	result, err := p.router.Route(ctx, providers.DomainLLM, providers.Request{
		Query:        query,
		SystemPrompt: p.systemPrompt(req.Language, ""),
		Language:     req.Language,
	}, req.Preferred)
	if err != nil {
		return nil, err
	}
	return p.validated(result.Content, "", result.Provider, a), nil
}

// sequentialDomains are single-value lookups served one provider at a
// time through the router, so every candidate passes quota and breaker
// checks and successes are charged to the ledger.
var sequentialDomains = map[providers.Domain]bool{
	providers.DomainCryptoPrice: true,
	providers.DomainStock:       true,
	providers.DomainMarket:      true,
	providers.DomainTranslate:   true,
}

// handleData serves a data-domain query. Single-value domains walk the
// router's failover chain; the rest aggregate their candidate
// providers, then optionally synthesize the merged context through an
// LLM for deep queries.
func (p *Pipeline) handleData(ctx context.Context, query string, req ChatRequest, a classify.Analysis) (*ChatResponse, error) {
	if sequentialDomains[a.Domain] && a.Mode != classify.ModeDeep {
		return p.handleSequential(ctx, query, req, a)
	}

	legs := p.resolve(ctx, a.Candidates)
	if len(legs) == 0 {
		return nil, fmt.Errorf("%s: no candidates registered: %w", a.Domain, providers.ErrNoProviderAvailable)
	}

	merged := p.aggregator.Aggregate(ctx, legs, providers.Request{
		Query:    query,
		Language: req.Language,
	})
	p.chargeSuccesses(ctx, merged.Succeeded)
	if merged.NoData {
		return &ChatResponse{
			Response: NoDataMessage,
			Provider: "none",
			NoData:   true,
		}, nil
	}

	answer := merged.Context
	provider := firstOr(merged.Succeeded, "aggregate")
	if p.config.SynthesizeDeep && a.Mode == classify.ModeDeep {
		result, err := p.router.Route(ctx, providers.DomainLLM, providers.Request{
			Query:        query,
			SystemPrompt: p.systemPrompt(req.Language, merged.Context),
			Language:     req.Language,
		}, req.Preferred)
		if err != nil {
			// Synthesis is best-effort; the raw merge still answers.
			log.Printf("[Pipeline] synthesis unavailable, returning merged context: %v", err)
		} else {
			answer = result.Content
			provider = result.Provider
		}
	}

	resp := p.validated(answer, merged.Context, provider, a)
	resp.Sources = merged.Succeeded
	return resp, nil
}

// handleSequential routes a single-value domain through the failover
// chain. Candidate exhaustion degrades to a no-data response; only an
// empty domain is an error.
func (p *Pipeline) handleSequential(ctx context.Context, query string, req ChatRequest, a classify.Analysis) (*ChatResponse, error) {
	if len(p.registry.ByDomain(a.Domain)) == 0 {
		return nil, fmt.Errorf("%s: no candidates registered: %w", a.Domain, providers.ErrNoProviderAvailable)
	}

	result, err := p.router.Route(ctx, a.Domain, providers.Request{
		Query:    query,
		Language: req.Language,
	}, req.Preferred)
	if err != nil {
		log.Printf("[Pipeline] %s: no candidate could serve: %v", a.Domain, err)
		return &ChatResponse{
			Response: NoDataMessage,
			Provider: "none",
			NoData:   true,
		}, nil
	}

	resp := p.validated(result.Content, "", result.Provider, a)
	resp.Sources = []string{result.Provider}
	return resp, nil
}

// chargeSuccesses records successful fan-out legs against quota and
// breaker state, mirroring what the router does on its own calls.
func (p *Pipeline) chargeSuccesses(ctx context.Context, names []string) {
	for _, name := range names {
		p.router.RecordUse(ctx, name)
	}
}

// validated runs the rule list and annotates the answer.
func (p *Pipeline) validated(answer, context, provider string, a classify.Analysis) *ChatResponse {
	report := p.validator.Check(answer, context, a.Domain)
	return &ChatResponse{
		Response:   validate.Annotate(answer, report, a.Domain),
		Provider:   provider,
		Validation: report,
	}
}

// store caches a response with a TTL scaled by validation confidence.
func (p *Pipeline) store(ctx context.Context, namespace, fp string, resp *ChatResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	l2 := defaultTTL
	switch {
	case resp.Validation.Confidence >= highConfidence:
		l2 = longTTL
	case resp.Validation.Confidence < lowConfidence:
		l2 = shortTTL
	}
	p.cache.Set(ctx, namespace, fp, raw, l1TTL(l2), l2)
}

// Search fans the query out per category and returns the raw merges.
// Unknown categories come back as no-data rather than failing the
// whole request. Results with at least one section are cached.
func (p *Pipeline) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := p.now()

	query, err := Sanitize(req.Query)
	if err != nil {
		return nil, err
	}

	categories := req.Categories
	if len(categories) == 0 {
		analysis := p.classifier.Analyze(query, "")
		categories = []providers.Domain{analysis.Domain}
	}

	fp := cache.Fingerprint(map[string]any{
		"query":      query,
		"categories": categories,
		"max":        req.MaxResultsPerCategory,
		"language":   req.Language,
	})
	if raw, ok := p.cache.Get(ctx, searchNamespace, fp); ok {
		var cached SearchResponse
		if err := json.Unmarshal(raw, &cached); err == nil {
			cached.Performance = Performance{Cached: true, TotalTimeMs: time.Since(start).Milliseconds()}
			return &cached, nil
		}
	}

	results := make(map[providers.Domain]*aggregate.Merged, len(categories))
	total := 0
	for _, category := range categories {
		legs := p.resolveProviders(ctx, p.registry.ByDomain(category))
		if req.MaxResultsPerCategory > 0 && len(legs) > req.MaxResultsPerCategory {
			legs = legs[:req.MaxResultsPerCategory]
		}
		merged := p.aggregator.Aggregate(ctx, legs, providers.Request{
			Query:    query,
			Language: req.Language,
		})
		p.chargeSuccesses(ctx, merged.Succeeded)
		results[category] = merged
		total += len(merged.Sections)
	}

	resp := &SearchResponse{
		Query:              query,
		CategoriesSearched: categories,
		Results:            results,
		TotalResults:       total,
		Performance:        Performance{TotalTimeMs: time.Since(start).Milliseconds()},
	}
	if total > 0 {
		if raw, err := json.Marshal(resp); err == nil {
			p.cache.Set(ctx, searchNamespace, fp, raw, l1TTL(defaultTTL), defaultTTL)
		}
	}
	return resp, nil
}

// Fetch serves the direct data endpoints: one domain, explicit params,
// cache in front of the router.
func (p *Pipeline) Fetch(ctx context.Context, domain providers.Domain, req providers.Request) (*providers.Result, bool, error) {
	fp := cache.Fingerprint(map[string]any{
		"query":  req.Query,
		"params": req.Params,
	})
	namespace := string(domain)

	if raw, ok := p.cache.Get(ctx, namespace, fp); ok {
		var cached providers.Result
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, true, nil
		}
	}

	result, err := p.router.Route(ctx, domain, req, "")
	if err != nil {
		return nil, false, err
	}

	if raw, err := json.Marshal(result); err == nil {
		p.cache.Set(ctx, namespace, fp, raw, l1TTL(defaultTTL), defaultTTL)
	}
	return result, false, nil
}

// l1TTL keeps the in-process copy no longer than the shared one.
func l1TTL(l2 time.Duration) time.Duration {
	if l2 < shortTTL {
		return l2
	}
	return shortTTL
}

// Invalidate clears cached responses for one domain namespace.
func (p *Pipeline) Invalidate(ctx context.Context, domain providers.Domain) error {
	return p.cache.Invalidate(ctx, string(domain))
}

// resolve maps candidate names to live registry entries, dropping any
// that went unavailable, over quota, or breaker-open since
// classification.
func (p *Pipeline) resolve(ctx context.Context, names []string) []providers.Provider {
	out := make([]providers.Provider, 0, len(names))
	for _, name := range names {
		if !p.router.Admits(ctx, name) {
			continue
		}
		if prov, err := p.registry.Get(name); err == nil {
			out = append(out, prov)
		}
	}
	return out
}

// resolveProviders applies the same admission checks to an already
// resolved provider list.
func (p *Pipeline) resolveProviders(ctx context.Context, provs []providers.Provider) []providers.Provider {
	out := make([]providers.Provider, 0, len(provs))
	for _, prov := range provs {
		if p.router.Admits(ctx, prov.Name()) {
			out = append(out, prov)
		}
	}
	return out
}

// systemPrompt builds the LLM directive: persona, the current date,
// the language to answer in, and anti-hallucination rules. context,
// when non-empty, pins the answer to retrieved data.
func (p *Pipeline) systemPrompt(language, context string) string {
	if language == "" {
		language = "en"
	}
	prompt := fmt.Sprintf(
		"%s\nToday's date is %s.\nAnswer in language %q.\n"+
			"Rules: never invent facts, figures, or events; say so plainly when you do not know; "+
			"do not describe events after today's date as having happened.",
		p.config.Persona, p.now().Format("2006-01-02"), language)
	if context != "" {
		prompt += "\n\nUse only the following retrieved data to answer:\n" + context
	}
	return prompt
}

func firstOr(items []string, fallback string) string {
	if len(items) > 0 {
		return items[0]
	}
	return fallback
}
