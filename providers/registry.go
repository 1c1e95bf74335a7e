// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package providers

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the dynamic availability state of a registered provider.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

// Entry is the registry's view of one provider: the immutable adapter
// plus its mutable health state.
type Entry struct {
	Provider  Provider
	Status    Status
	LastError string
	UpdatedAt time.Time
}

// Snapshot is a copyable view of an entry for health endpoints.
type Snapshot struct {
	Name              string    `json:"name"`
	Domain            Domain    `json:"domain"`
	Priority          int       `json:"priority"`
	DailyQuota        int       `json:"daily_quota"`
	CredentialPresent bool      `json:"credential_present"`
	Status            Status    `json:"status"`
	LastError         string    `json:"last_error,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Registry holds the named, typed collection of provider adapters keyed
// by domain. Reads are hot and lock-shared; mutation happens at startup
// and on explicit admin actions only.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Entry
	byDomain map[Domain][]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*Entry),
		byDomain: make(map[Domain][]*Entry),
	}
}

// Register adds a provider under its domain. Registering a duplicate
// name is a configuration error.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}

	entry := &Entry{
		Provider:  p,
		Status:    StatusAvailable,
		UpdatedAt: time.Now(),
	}
	r.byName[name] = entry

	domain := p.Domain()
	entries := append(r.byDomain[domain], entry)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Provider.Priority() < entries[j].Provider.Priority()
	})
	r.byDomain[domain] = entries

	return nil
}

// Get looks up a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return entry.Provider, nil
}

// Eligible reports whether the named provider may serve requests:
// credential present and status available.
func (r *Registry) Eligible(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byName[name]
	if !ok {
		return false
	}
	return eligible(entry)
}

func eligible(e *Entry) bool {
	return e.Status == StatusAvailable && e.Provider.CredentialPresent()
}

// ByDomain enumerates eligible providers for a domain in priority order
// (lower priority value first).
func (r *Registry) ByDomain(domain Domain) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byDomain[domain]
	out := make([]Provider, 0, len(entries))
	for _, e := range entries {
		if eligible(e) {
			out = append(out, e.Provider)
		}
	}
	return out
}

// Domains lists all domains with at least one registered provider.
func (r *Registry) Domains() []Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Domain, 0, len(r.byDomain))
	for d := range r.byDomain {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarkUnavailable records a provider failure reason and takes the
// provider out of rotation until MarkAvailable.
func (r *Registry) MarkUnavailable(name, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.byName[name]; ok {
		entry.Status = StatusUnavailable
		entry.LastError = reason
		entry.UpdatedAt = time.Now()
	}
}

// MarkAvailable returns a provider to rotation.
func (r *Registry) MarkAvailable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.byName[name]; ok {
		entry.Status = StatusAvailable
		entry.LastError = ""
		entry.UpdatedAt = time.Now()
	}
}

// SnapshotAll returns a point-in-time view of every registered provider,
// sorted by domain then priority. Used by the readiness endpoint.
func (r *Registry) SnapshotAll() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.byName))
	for _, entry := range r.byName {
		p := entry.Provider
		out = append(out, Snapshot{
			Name:              p.Name(),
			Domain:            p.Domain(),
			Priority:          p.Priority(),
			DailyQuota:        p.DailyQuota(),
			CredentialPresent: p.CredentialPresent(),
			Status:            entry.Status,
			LastError:         entry.LastError,
			UpdatedAt:         entry.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
