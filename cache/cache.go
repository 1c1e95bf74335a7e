// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package cache provides the multi-level response cache: a bounded
// in-process LRU with TTL (L1) backed by an optional Redis tier with
// longer TTLs (L2). Keys are namespaced; a namespace can be
// invalidated as a unit.
package cache

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// invalidateScanBatch bounds one SCAN page during L2 invalidation.
const invalidateScanBatch = 200

// Stats tracks cache performance counters.
type Stats struct {
	L1Hits    int64 `json:"l1_hits"`
	L2Hits    int64 `json:"l2_hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// MultiLevel is the two-tier cache. A nil Redis client degrades to
// L1-only operation.
type MultiLevel struct {
	l1  *lruCache
	rdb *redis.Client

	l1Hits int64
	l2Hits int64
	misses int64
}

// Config holds cache sizing.
type Config struct {
	// L1MaxSize is the LRU capacity (entries, all namespaces).
	L1MaxSize int

	// L1TTL is the default L1 entry lifetime.
	L1TTL time.Duration

	// L2TTL is the default L2 entry lifetime.
	L2TTL time.Duration
}

// DefaultConfig returns standard cache sizing.
func DefaultConfig() Config {
	return Config{
		L1MaxSize: 1000,
		L1TTL:     5 * time.Minute,
		L2TTL:     time.Hour,
	}
}

// NewMultiLevel creates the cache. rdb may be nil.
func NewMultiLevel(cfg Config, rdb *redis.Client) *MultiLevel {
	return &MultiLevel{
		l1:  newLRUCache(cfg.L1MaxSize),
		rdb: rdb,
	}
}

func l2Key(namespace, key string) string {
	return "cache:" + namespace + ":" + key
}

// Get returns the cached value for (namespace, key), or absent.
// An L1 hit promotes the entry; an L1 miss falls through to L2, and an
// L2 hit repopulates L1 with the remaining upstream TTL. Expired
// entries are never returned.
func (m *MultiLevel) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	if value, ok := m.l1.get(namespace, key); ok {
		atomic.AddInt64(&m.l1Hits, 1)
		return value, true
	}

	if m.rdb != nil {
		k := l2Key(namespace, key)
		value, err := m.rdb.Get(ctx, k).Bytes()
		if err == nil {
			atomic.AddInt64(&m.l2Hits, 1)
			// Repopulate L1 bounded by the key's remaining L2 life.
			l1TTL := 5 * time.Minute
			if rem, terr := m.rdb.TTL(ctx, k).Result(); terr == nil && rem > 0 && rem < l1TTL {
				l1TTL = rem
			}
			m.l1.set(namespace, key, value, l1TTL)
			return value, true
		}
		if err != redis.Nil {
			log.Printf("[Cache] WARNING: L2 get failed for %s/%s: %v", namespace, key, err)
		}
	}

	atomic.AddInt64(&m.misses, 1)
	return nil, false
}

// Set stores a value in both tiers. A non-positive TTL skips that tier.
func (m *MultiLevel) Set(ctx context.Context, namespace, key string, value []byte, l1TTL, l2TTL time.Duration) {
	if l1TTL > 0 {
		m.l1.set(namespace, key, value, l1TTL)
	}

	if m.rdb != nil && l2TTL > 0 {
		if err := m.rdb.Set(ctx, l2Key(namespace, key), value, l2TTL).Err(); err != nil {
			log.Printf("[Cache] WARNING: L2 set failed for %s/%s: %v", namespace, key, err)
		}
	}
}

// Invalidate removes all L1 entries in the namespace and deletes
// matching L2 keys in bounded SCAN batches. L2 cleanup is best-effort.
func (m *MultiLevel) Invalidate(ctx context.Context, namespace string) error {
	m.l1.invalidate(namespace)

	if m.rdb == nil {
		return nil
	}

	pattern := l2Key(namespace, "*")
	var cursor uint64
	for {
		keys, next, err := m.rdb.Scan(ctx, cursor, pattern, invalidateScanBatch).Result()
		if err != nil {
			log.Printf("[Cache] WARNING: L2 invalidate scan failed for %s: %v", namespace, err)
			return err
		}
		if len(keys) > 0 {
			if err := m.rdb.Del(ctx, keys...).Err(); err != nil {
				log.Printf("[Cache] WARNING: L2 invalidate delete failed for %s: %v", namespace, err)
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Stats returns the hit/miss counters.
func (m *MultiLevel) Stats() Stats {
	return Stats{
		L1Hits:    atomic.LoadInt64(&m.l1Hits),
		L2Hits:    atomic.LoadInt64(&m.l2Hits),
		Misses:    atomic.LoadInt64(&m.misses),
		Evictions: m.l1.evicted(),
	}
}

// Len reports the current L1 entry count.
func (m *MultiLevel) Len() int {
	return m.l1.len()
}
