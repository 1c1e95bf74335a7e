// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package aggregate fans a query out to a provider set concurrently,
// collects whatever succeeds within the deadline, and formats a merged
// context with deterministic section ordering.
package aggregate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/unigate/unigate/providers"
)

// Config holds the fan-out time budgets.
type Config struct {
	// PerLegTimeout bounds one provider call.
	PerLegTimeout time.Duration

	// GroupDeadline bounds the whole fan-out; still-pending legs are
	// cancelled when it fires.
	GroupDeadline time.Duration
}

// DefaultConfig returns the standard fan-out budgets.
func DefaultConfig() Config {
	return Config{
		PerLegTimeout: 15 * time.Second,
		GroupDeadline: 60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.PerLegTimeout <= 0 {
		c.PerLegTimeout = 15 * time.Second
	}
	if c.GroupDeadline <= 0 {
		c.GroupDeadline = 60 * time.Second
	}
	return c
}

// Section is one provider's contribution to the merged context.
type Section struct {
	Provider string        `json:"provider"`
	Content  string        `json:"content"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Merged is the fan-out outcome. NoData marks the zero-success case;
// it is a structured result, not an error.
type Merged struct {
	Context   string        `json:"context"`
	Sections  []Section     `json:"sections"`
	Succeeded []string      `json:"succeeded"`
	Failed    []string      `json:"failed"`
	NoData    bool          `json:"no_data"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Aggregator runs bounded-time fan-outs.
type Aggregator struct {
	config Config
}

// New creates an aggregator.
func New(config Config) *Aggregator {
	return &Aggregator{config: config.withDefaults()}
}

// legOutcome is one leg's result or failure marker. No error escapes a
// leg; panics and errors both reduce to a marker.
type legOutcome struct {
	provider string
	result   *providers.Result
	err      error
}

// Aggregate launches one leg per provider and merges the successes.
// Wall-clock time never exceeds the group deadline: when it fires,
// pending legs are cancelled and counted as failures.
func (a *Aggregator) Aggregate(ctx context.Context, provs []providers.Provider, req providers.Request) *Merged {
	start := time.Now()

	if len(provs) == 0 {
		return &Merged{NoData: true, Context: "", Elapsed: time.Since(start)}
	}

	groupCtx, cancel := context.WithTimeout(ctx, a.config.GroupDeadline)
	defer cancel()

	// The buffer holds every leg so abandoned goroutines never block on
	// send, even after collection has stopped.
	outcomes := make(chan legOutcome, len(provs))
	pending := make(map[string]bool, len(provs))
	for _, p := range provs {
		pending[p.Name()] = true
		go func(p providers.Provider) {
			outcomes <- a.runLeg(groupCtx, p, req)
		}(p)
	}

	var sections []Section
	var failed []string
	collect := func(outcome legOutcome) {
		delete(pending, outcome.provider)
		if outcome.err != nil || outcome.result == nil || strings.TrimSpace(outcome.result.Content) == "" {
			failed = append(failed, outcome.provider)
			return
		}
		sections = append(sections, Section{
			Provider: outcome.provider,
			Content:  outcome.result.Content,
			Elapsed:  outcome.result.Elapsed,
		})
	}

	// Collection must not outlive the group deadline even when a leg
	// ignores cancellation: once the deadline fires, drain whatever has
	// already reported and abandon the rest as failures.
loop:
	for received := 0; received < len(provs); received++ {
		select {
		case outcome := <-outcomes:
			collect(outcome)
		case <-groupCtx.Done():
			for {
				select {
				case outcome := <-outcomes:
					collect(outcome)
				default:
					break loop
				}
			}
		}
	}
	for name := range pending {
		log.Printf("[Aggregator] leg %s abandoned at group deadline", name)
		failed = append(failed, name)
	}

	// Merge order is keyed by provider identity, not completion order,
	// so identical outcome sets produce byte-identical contexts.
	sort.Slice(sections, func(i, j int) bool { return sections[i].Provider < sections[j].Provider })
	sort.Strings(failed)

	merged := &Merged{
		Sections: sections,
		Failed:   failed,
		Elapsed:  time.Since(start),
	}
	for _, s := range sections {
		merged.Succeeded = append(merged.Succeeded, s.Provider)
	}

	if len(sections) == 0 {
		merged.NoData = true
		log.Printf("[Aggregator] no leg succeeded out of %d", len(provs))
		return merged
	}

	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "== %s ==\n%s", s.Provider, s.Content)
	}
	merged.Context = b.String()
	return merged
}

// runLeg performs one provider call under the per-leg timeout and the
// group deadline, converting any failure (including a panic) into a
// failure marker.
func (a *Aggregator) runLeg(ctx context.Context, p providers.Provider, req providers.Request) (outcome legOutcome) {
	outcome.provider = p.Name()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Aggregator] leg %s panicked: %v", p.Name(), r)
			outcome.result = nil
			outcome.err = fmt.Errorf("leg panic: %v", r)
		}
	}()

	legCtx, cancel := context.WithTimeout(ctx, a.config.PerLegTimeout)
	defer cancel()

	result, err := p.Call(legCtx, req)
	if err != nil {
		log.Printf("[Aggregator] leg %s failed: %v", p.Name(), err)
		outcome.err = err
		return outcome
	}
	result.Provider = p.Name()
	outcome.result = result
	return outcome
}
