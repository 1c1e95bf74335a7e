// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint(map[string]any{"query": "btc", "domain": "crypto-price", "mode": "fast"})
	b := Fingerprint(map[string]any{"mode": "fast", "domain": "crypto-price", "query": "btc"})
	assert.Equal(t, a, b, "map key order must not change the fingerprint")

	c := Fingerprint(map[string]any{"query": "eth", "domain": "crypto-price", "mode": "fast"})
	assert.NotEqual(t, a, c)
}

func TestLRU_SetGetPromote(t *testing.T) {
	c := newLRUCache(3)

	c.set("chat", "a", []byte("1"), time.Minute)
	c.set("chat", "b", []byte("2"), time.Minute)
	c.set("chat", "c", []byte("3"), time.Minute)

	// Touch "a" so "b" becomes least recently used.
	_, ok := c.get("chat", "a")
	require.True(t, ok)

	// At capacity: the next set evicts "b".
	c.set("chat", "d", []byte("4"), time.Minute)
	_, ok = c.get("chat", "b")
	assert.False(t, ok, "least-recently-used entry must be evicted")
	_, ok = c.get("chat", "a")
	assert.True(t, ok)
	_, ok = c.get("chat", "d")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.evicted())
}

func TestLRU_EvictionIgnoresNamespace(t *testing.T) {
	c := newLRUCache(2)
	c.set("chat", "a", []byte("1"), time.Minute)
	c.set("search", "b", []byte("2"), time.Minute)
	c.set("weather", "c", []byte("3"), time.Minute)

	_, ok := c.get("chat", "a")
	assert.False(t, ok, "global LRU evicts across namespaces")
	assert.Equal(t, 2, c.len())
}

func TestLRU_TTLExpiry(t *testing.T) {
	c := newLRUCache(10)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.set("chat", "a", []byte("1"), 10*time.Second)

	_, ok := c.get("chat", "a")
	require.True(t, ok)

	// At created_at + ttl the entry is absent.
	c.now = func() time.Time { return now.Add(11 * time.Second) }
	_, ok = c.get("chat", "a")
	assert.False(t, ok, "a get never returns an expired value")
	assert.Equal(t, 0, c.len(), "expired entry is removed on access")
}

func TestLRU_InvalidateNamespace(t *testing.T) {
	c := newLRUCache(10)
	c.set("chat", "a", []byte("1"), time.Minute)
	c.set("chat", "b", []byte("2"), time.Minute)
	c.set("search", "x", []byte("3"), time.Minute)

	removed := c.invalidate("chat")
	assert.Equal(t, 2, removed)
	_, ok := c.get("search", "x")
	assert.True(t, ok)
}

func newTestMultiLevel(t *testing.T) (*MultiLevel, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewMultiLevel(Config{L1MaxSize: 100}, rdb), mr
}

func TestMultiLevel_SetThenGet(t *testing.T) {
	m, _ := newTestMultiLevel(t)
	ctx := context.Background()

	m.Set(ctx, "chat", "fp1", []byte("hello"), time.Minute, time.Hour)
	got, ok := m.Get(ctx, "chat", "fp1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.L1Hits)
}

func TestMultiLevel_L2HitRepopulatesL1(t *testing.T) {
	m, _ := newTestMultiLevel(t)
	ctx := context.Background()

	// L2-only write (l1 ttl 0).
	m.Set(ctx, "chat", "fp2", []byte("payload"), 0, time.Hour)
	assert.Equal(t, 0, m.Len())

	got, ok := m.Get(ctx, "chat", "fp2")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
	assert.Equal(t, 1, m.Len(), "L2 hit repopulates L1")

	// Second read is an L1 hit.
	_, ok = m.Get(ctx, "chat", "fp2")
	require.True(t, ok)
	stats := m.Stats()
	assert.Equal(t, int64(1), stats.L2Hits)
	assert.Equal(t, int64(1), stats.L1Hits)
}

func TestMultiLevel_L2Expiry(t *testing.T) {
	m, mr := newTestMultiLevel(t)
	ctx := context.Background()

	m.Set(ctx, "chat", "fp3", []byte("v"), 0, time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := m.Get(ctx, "chat", "fp3")
	assert.False(t, ok)
}

func TestMultiLevel_InvalidateNamespace(t *testing.T) {
	m, mr := newTestMultiLevel(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.Set(ctx, "crypto", fmt.Sprintf("k%d", i), []byte("v"), time.Minute, time.Hour)
	}
	m.Set(ctx, "news", "other", []byte("v"), time.Minute, time.Hour)

	require.NoError(t, m.Invalidate(ctx, "crypto"))

	for i := 0; i < 5; i++ {
		_, ok := m.Get(ctx, "crypto", fmt.Sprintf("k%d", i))
		assert.False(t, ok)
	}
	_, ok := m.Get(ctx, "news", "other")
	assert.True(t, ok, "other namespaces untouched")
	assert.False(t, mr.Exists("cache:crypto:k0"))
}

func TestMultiLevel_NilRedisDegradesToL1(t *testing.T) {
	m := NewMultiLevel(Config{L1MaxSize: 10}, nil)
	ctx := context.Background()

	m.Set(ctx, "chat", "fp", []byte("v"), time.Minute, time.Hour)
	got, ok := m.Get(ctx, "chat", "fp")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	require.NoError(t, m.Invalidate(ctx, "chat"))
	_, ok = m.Get(ctx, "chat", "fp")
	assert.False(t, ok)
}

func TestMultiLevel_RepeatedGetIdempotent(t *testing.T) {
	m, _ := newTestMultiLevel(t)
	ctx := context.Background()

	m.Set(ctx, "chat", "fp", []byte("stable"), time.Minute, time.Hour)
	for i := 0; i < 10; i++ {
		got, ok := m.Get(ctx, "chat", "fp")
		require.True(t, ok)
		assert.Equal(t, []byte("stable"), got)
	}
}
