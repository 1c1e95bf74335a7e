// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package quota tracks per-provider daily call counters and answers
// whether a provider may still serve today. The counters live in Redis
// when a client is configured, so multiple gateway processes share one
// budget; otherwise a process-local map is used, which is best-effort
// across processes.
package quota

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// keyTTL keeps stale day cells from accumulating in Redis. Two days
// covers the current day in any reset timezone.
const keyTTL = 48 * time.Hour

// QuotaFunc reports the daily budget for a provider name (0 = unlimited).
type QuotaFunc func(name string) int

// Ledger is the per-provider, per-calendar-day counter.
type Ledger struct {
	rdb      *redis.Client
	quotaFor QuotaFunc
	loc      *time.Location

	// Process-local fallback, keyed by provider name.
	mu    sync.Mutex
	cells map[string]*cell

	// now is swappable in tests.
	now func() time.Time
}

type cell struct {
	day   string
	count int
}

// NewLedger creates a ledger. rdb may be nil, in which case counters
// are process-local. loc is the calendar-day reference zone; nil means
// UTC.
func NewLedger(rdb *redis.Client, quotaFor QuotaFunc, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{
		rdb:      rdb,
		quotaFor: quotaFor,
		loc:      loc,
		cells:    make(map[string]*cell),
		now:      time.Now,
	}
}

func (l *Ledger) day() string {
	return l.now().In(l.loc).Format("2006-01-02")
}

func (l *Ledger) key(name string) string {
	return fmt.Sprintf("quota:%s:%s", name, l.day())
}

// Usage returns today's counter for a provider. A ledger failure never
// blocks a request: on Redis error the counter reads as 0.
func (l *Ledger) Usage(ctx context.Context, name string) int {
	if l.rdb != nil {
		n, err := l.rdb.Get(ctx, l.key(name)).Int()
		if err == redis.Nil {
			return 0
		}
		if err != nil {
			log.Printf("[Quota] WARNING: usage read failed for %s: %v (treating as 0)", name, err)
			return 0
		}
		return n
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.cells[name]
	if !ok || c.day != l.day() {
		return 0
	}
	return c.count
}

// Increment adds k calls to today's counter. Increment-and-expire is
// atomic on the Redis backend; the local fallback holds a short lock.
func (l *Ledger) Increment(ctx context.Context, name string, k int) {
	if k <= 0 {
		k = 1
	}

	if l.rdb != nil {
		key := l.key(name)
		pipe := l.rdb.TxPipeline()
		pipe.IncrBy(ctx, key, int64(k))
		pipe.Expire(ctx, key, keyTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[Quota] WARNING: increment failed for %s: %v", name, err)
		}
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	today := l.day()
	c, ok := l.cells[name]
	if !ok || c.day != today {
		// Day rollover: the stale cell reads as 0 and is replaced on
		// this first write of the new day.
		c = &cell{day: today}
		l.cells[name] = c
	}
	c.count += k
}

// CanServe reports whether the provider's daily budget allows another
// call. Unlimited (quota 0) always serves; ledger failures fail open.
func (l *Ledger) CanServe(ctx context.Context, name string) bool {
	quota := 0
	if l.quotaFor != nil {
		quota = l.quotaFor(name)
	}
	if quota <= 0 {
		return true
	}
	return l.Usage(ctx, name) < quota
}
