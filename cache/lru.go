// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"container/list"
	"sync"
	"time"
)

// lruEntry is one L1 record. Expired entries are treated as absent and
// removed lazily on access.
type lruEntry struct {
	key       string // namespace-qualified
	namespace string
	value     []byte
	createdAt time.Time
	ttl       time.Duration
}

func (e *lruEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.After(e.createdAt.Add(e.ttl))
}

// lruCache is the bounded in-process tier: a classic map + doubly
// linked list LRU with per-entry TTL. The capacity is global; eviction
// picks the least-recently-used entry irrespective of namespace.
type lruCache struct {
	mu        sync.Mutex
	maxSize   int
	order     *list.List // front = most recently used
	elements  map[string]*list.Element
	evictions int64
	now       func() time.Time
}

func newLRUCache(maxSize int) *lruCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &lruCache{
		maxSize:  maxSize,
		order:    list.New(),
		elements: make(map[string]*list.Element),
		now:      time.Now,
	}
}

func qualify(namespace, key string) string {
	return namespace + ":" + key
}

// get returns the value and promotes the entry to most-recently-used.
func (c *lruCache) get(namespace, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.elements[qualify(namespace, key)]
	if !ok {
		return nil, false
	}

	entry := el.Value.(*lruEntry)
	if entry.expired(c.now()) {
		c.removeElement(el)
		return nil, false
	}

	c.order.MoveToFront(el)
	return entry.value, true
}

// set inserts or replaces an entry, evicting the LRU entry at capacity.
func (c *lruCache) set(namespace, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	qk := qualify(namespace, key)
	if el, ok := c.elements[qk]; ok {
		entry := el.Value.(*lruEntry)
		entry.value = value
		entry.createdAt = c.now()
		entry.ttl = ttl
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
			c.evictions++
		}
	}

	entry := &lruEntry{
		key:       qk,
		namespace: namespace,
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
	}
	c.elements[qk] = c.order.PushFront(entry)
}

// invalidate removes all entries in a namespace.
func (c *lruCache) invalidate(namespace string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*lruEntry).namespace == namespace {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

func (c *lruCache) removeElement(el *list.Element) {
	entry := el.Value.(*lruEntry)
	c.order.Remove(el)
	delete(c.elements, entry.key)
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lruCache) evicted() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}
