// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package breaker implements a per-resource circuit breaker. Each named
// resource gets an independent state machine {closed, open, half-open}
// driven by consecutive failures and a timed probe.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/unigate/unigate/providers"
)

// State is the circuit state of one cell.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config holds the breaker parameters.
type Config struct {
	// FailureThreshold is the number of consecutive failures that
	// opens the circuit.
	FailureThreshold int

	// Cooldown is the open -> half-open interval.
	Cooldown time.Duration

	// HalfOpenProbes is the number of concurrent probe calls admitted
	// while half-open.
	HalfOpenProbes int
}

// DefaultConfig returns the standard breaker parameters.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenProbes:   1,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenProbes <= 0 {
		c.HalfOpenProbes = 1
	}
	return c
}

// cell is the per-resource state record. The mutex is held only across
// state transitions, never across a provider call.
type cell struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	inFlightProbes      int
}

// Set manages one breaker cell per resource name. Cells are created
// lazily on first use.
type Set struct {
	config Config

	mu    sync.Mutex
	cells map[string]*cell

	// since is monotonic elapsed time, swappable in tests.
	since func(time.Time) time.Duration
}

// NewSet creates a breaker set with the given parameters.
func NewSet(config Config) *Set {
	return &Set{
		config: config.withDefaults(),
		cells:  make(map[string]*cell),
		since:  time.Since,
	}
}

func (s *Set) cell(name string) *cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[name]
	if !ok {
		c = &cell{state: StateClosed}
		s.cells[name] = c
	}
	return c
}

// Allow reports whether a call to the named resource may proceed.
// When open and the cooldown has not elapsed it fails synthetically
// with ErrBreakerOpen without invoking anything. When the cooldown has
// elapsed the cell transitions to half-open and admits up to
// HalfOpenProbes concurrent probes.
func (s *Set) Allow(name string) error {
	c := s.cell(name)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return nil
	case StateOpen:
		if s.since(c.openedAt) < s.config.Cooldown {
			return fmt.Errorf("%s: %w", name, providers.ErrBreakerOpen)
		}
		c.state = StateHalfOpen
		c.inFlightProbes = 1
		return nil
	case StateHalfOpen:
		if c.inFlightProbes >= s.config.HalfOpenProbes {
			return fmt.Errorf("%s: %w", name, providers.ErrBreakerOpen)
		}
		c.inFlightProbes++
		return nil
	}
	return nil
}

// RecordSuccess resets the failure counter and closes the circuit.
func (s *Set) RecordSuccess(name string) {
	c := s.cell(name)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
	c.inFlightProbes = 0
	c.state = StateClosed
}

// RecordFailure increments the failure counter; at the threshold the
// circuit opens and the open timestamp is stamped. A failed half-open
// probe re-opens immediately.
func (s *Set) RecordFailure(name string) {
	c := s.cell(name)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	if c.state == StateHalfOpen || c.consecutiveFailures >= s.config.FailureThreshold {
		c.state = StateOpen
		c.openedAt = time.Now()
		c.inFlightProbes = 0
	}
}

// State returns the current state of a resource's cell. Resources with
// no recorded activity report closed.
func (s *Set) State(name string) State {
	s.mu.Lock()
	c, ok := s.cells[name]
	s.mu.Unlock()
	if !ok {
		return StateClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot reports the state of every cell, for the readiness endpoint.
func (s *Set) Snapshot() map[string]State {
	s.mu.Lock()
	names := make([]string, 0, len(s.cells))
	for name := range s.cells {
		names = append(names, name)
	}
	s.mu.Unlock()

	out := make(map[string]State, len(names))
	for _, name := range names {
		out[name] = s.State(name)
	}
	return out
}
