// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a minimal Provider for registry tests.
type fakeProvider struct {
	name       string
	domain     Domain
	priority   int
	quota      int
	credential bool
}

func (f *fakeProvider) Name() string             { return f.name }
func (f *fakeProvider) Domain() Domain           { return f.domain }
func (f *fakeProvider) Priority() int            { return f.priority }
func (f *fakeProvider) DailyQuota() int          { return f.quota }
func (f *fakeProvider) CredentialPresent() bool  { return f.credential }
func (f *fakeProvider) Call(ctx context.Context, req Request) (*Result, error) {
	return &Result{Content: "ok", Provider: f.name, Elapsed: time.Millisecond}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&fakeProvider{name: "coingecko", domain: DomainCryptoPrice, priority: 1, credential: true})
	require.NoError(t, err)

	p, err := r.Get("coingecko")
	require.NoError(t, err)
	assert.Equal(t, "coingecko", p.Name())

	_, err = r.Get("unknown")
	assert.Error(t, err)
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&fakeProvider{name: "openai", domain: DomainLLM, credential: true}))
	err := r.Register(&fakeProvider{name: "openai", domain: DomainLLM, credential: true})
	assert.Error(t, err)
}

func TestRegistry_ByDomainPriorityOrder(t *testing.T) {
	r := NewRegistry()

	// Registered out of order on purpose.
	require.NoError(t, r.Register(&fakeProvider{name: "backup", domain: DomainLLM, priority: 3, credential: true}))
	require.NoError(t, r.Register(&fakeProvider{name: "primary", domain: DomainLLM, priority: 1, credential: true}))
	require.NoError(t, r.Register(&fakeProvider{name: "secondary", domain: DomainLLM, priority: 2, credential: true}))

	got := r.ByDomain(DomainLLM)
	require.Len(t, got, 3)
	assert.Equal(t, "primary", got[0].Name())
	assert.Equal(t, "secondary", got[1].Name())
	assert.Equal(t, "backup", got[2].Name())
}

func TestRegistry_EligibilityFiltersNoCredential(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&fakeProvider{name: "keyed", domain: DomainNews, priority: 1, credential: false}))
	require.NoError(t, r.Register(&fakeProvider{name: "open", domain: DomainNews, priority: 2, credential: true}))

	got := r.ByDomain(DomainNews)
	require.Len(t, got, 1)
	assert.Equal(t, "open", got[0].Name())
	assert.False(t, r.Eligible("keyed"))
}

func TestRegistry_MarkUnavailable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeProvider{name: "wiki", domain: DomainEncyclopedia, credential: true}))

	r.MarkUnavailable("wiki", "upstream 503")
	assert.Empty(t, r.ByDomain(DomainEncyclopedia))
	assert.False(t, r.Eligible("wiki"))

	snaps := r.SnapshotAll()
	require.Len(t, snaps, 1)
	assert.Equal(t, StatusUnavailable, snaps[0].Status)
	assert.Equal(t, "upstream 503", snaps[0].LastError)

	r.MarkAvailable("wiki")
	assert.Len(t, r.ByDomain(DomainEncyclopedia), 1)
}

func TestQuotaCost_Default(t *testing.T) {
	assert.Equal(t, 1, QuotaCost(&fakeProvider{name: "x"}))
}
