// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unigate/unigate/providers"
)

// legProvider is a scripted provider for fan-out tests.
type legProvider struct {
	name    string
	content string
	err     error
	delay   time.Duration
	panics  bool
}

func (p *legProvider) Name() string             { return p.name }
func (p *legProvider) Domain() providers.Domain { return providers.DomainNews }
func (p *legProvider) Priority() int            { return 1 }
func (p *legProvider) DailyQuota() int          { return 0 }
func (p *legProvider) CredentialPresent() bool  { return true }

func (p *legProvider) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	if p.panics {
		panic("scripted panic")
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &providers.Result{Content: p.content}, nil
}

func fastAggregator() *Aggregator {
	return New(Config{PerLegTimeout: 200 * time.Millisecond, GroupDeadline: 500 * time.Millisecond})
}

func TestAggregate_AllSucceed(t *testing.T) {
	agg := fastAggregator()
	provs := []providers.Provider{
		&legProvider{name: "beta", content: "from beta"},
		&legProvider{name: "alpha", content: "from alpha"},
	}

	merged := agg.Aggregate(context.Background(), provs, providers.Request{Query: "q"})
	require.NotNil(t, merged)
	assert.False(t, merged.NoData)
	assert.Equal(t, []string{"alpha", "beta"}, merged.Succeeded)
	assert.Empty(t, merged.Failed)
	assert.Equal(t, "== alpha ==\nfrom alpha\n\n== beta ==\nfrom beta", merged.Context)
}

func TestAggregate_MergeIsByteStable(t *testing.T) {
	agg := fastAggregator()
	// Staggered delays shuffle completion order between runs; the
	// merged context must not depend on it.
	provs := []providers.Provider{
		&legProvider{name: "charlie", content: "c", delay: 50 * time.Millisecond},
		&legProvider{name: "alpha", content: "a", delay: 10 * time.Millisecond},
		&legProvider{name: "bravo", content: "b"},
	}

	first := agg.Aggregate(context.Background(), provs, providers.Request{Query: "q"})
	second := agg.Aggregate(context.Background(), provs, providers.Request{Query: "q"})
	assert.Equal(t, first.Context, second.Context)
	assert.Equal(t, "== alpha ==\na\n\n== bravo ==\nb\n\n== charlie ==\nc", first.Context)
}

func TestAggregate_PartialSuccess(t *testing.T) {
	agg := fastAggregator()
	provs := []providers.Provider{
		&legProvider{name: "ok", content: "fine"},
		&legProvider{name: "broken", err: errors.New("boom")},
		&legProvider{name: "empty", content: "   "},
	}

	merged := agg.Aggregate(context.Background(), provs, providers.Request{Query: "q"})
	assert.False(t, merged.NoData)
	assert.Equal(t, []string{"ok"}, merged.Succeeded)
	assert.Equal(t, []string{"broken", "empty"}, merged.Failed)
	assert.Equal(t, "== ok ==\nfine", merged.Context)
}

func TestAggregate_ZeroSuccessesIsNoData(t *testing.T) {
	agg := fastAggregator()
	provs := []providers.Provider{
		&legProvider{name: "a", err: errors.New("down")},
		&legProvider{name: "b", err: errors.New("down")},
	}

	merged := agg.Aggregate(context.Background(), provs, providers.Request{Query: "q"})
	require.NotNil(t, merged)
	assert.True(t, merged.NoData)
	assert.Empty(t, merged.Context)
	assert.Equal(t, []string{"a", "b"}, merged.Failed)
}

func TestAggregate_PanicBecomesFailureMarker(t *testing.T) {
	agg := fastAggregator()
	provs := []providers.Provider{
		&legProvider{name: "steady", content: "data"},
		&legProvider{name: "crashy", panics: true},
	}

	merged := agg.Aggregate(context.Background(), provs, providers.Request{Query: "q"})
	assert.Equal(t, []string{"steady"}, merged.Succeeded)
	assert.Equal(t, []string{"crashy"}, merged.Failed)
}

func TestAggregate_SlowLegBoundedByPerLegTimeout(t *testing.T) {
	agg := New(Config{PerLegTimeout: 50 * time.Millisecond, GroupDeadline: time.Second})
	provs := []providers.Provider{
		&legProvider{name: "quick", content: "ok"},
		&legProvider{name: "slow", content: "late", delay: 300 * time.Millisecond},
	}

	start := time.Now()
	merged := agg.Aggregate(context.Background(), provs, providers.Request{Query: "q"})
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, []string{"quick"}, merged.Succeeded)
	assert.Equal(t, []string{"slow"}, merged.Failed)
}

func TestAggregate_GroupDeadlineCancelsStragglers(t *testing.T) {
	agg := New(Config{PerLegTimeout: time.Second, GroupDeadline: 80 * time.Millisecond})
	provs := []providers.Provider{
		&legProvider{name: "fast", content: "ok"},
		&legProvider{name: "straggler", content: "never", delay: 500 * time.Millisecond},
	}

	start := time.Now()
	merged := agg.Aggregate(context.Background(), provs, providers.Request{Query: "q"})
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, []string{"fast"}, merged.Succeeded)
	assert.Equal(t, []string{"straggler"}, merged.Failed)
}

// blockingProvider ignores context cancellation entirely and only
// returns when released.
type blockingProvider struct {
	name    string
	release chan struct{}
}

func (p *blockingProvider) Name() string             { return p.name }
func (p *blockingProvider) Domain() providers.Domain { return providers.DomainNews }
func (p *blockingProvider) Priority() int            { return 1 }
func (p *blockingProvider) DailyQuota() int          { return 0 }
func (p *blockingProvider) CredentialPresent() bool  { return true }

func (p *blockingProvider) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	<-p.release
	return &providers.Result{Content: "too late"}, nil
}

func TestAggregate_DeadlineHoldsWhenLegIgnoresCancellation(t *testing.T) {
	agg := New(Config{PerLegTimeout: time.Second, GroupDeadline: 100 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)
	provs := []providers.Provider{
		&legProvider{name: "prompt", content: "ok"},
		&blockingProvider{name: "stuck", release: release},
	}

	done := make(chan *Merged, 1)
	go func() {
		done <- agg.Aggregate(context.Background(), provs, providers.Request{Query: "q"})
	}()

	select {
	case merged := <-done:
		assert.Equal(t, []string{"prompt"}, merged.Succeeded)
		assert.Equal(t, []string{"stuck"}, merged.Failed)
	case <-time.After(2 * time.Second):
		t.Fatal("aggregate still blocked long after the group deadline")
	}
}

func TestAggregate_NoProviders(t *testing.T) {
	merged := fastAggregator().Aggregate(context.Background(), nil, providers.Request{Query: "q"})
	require.NotNil(t, merged)
	assert.True(t, merged.NoData)
}
