// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package cache provides a thread-safe TTL cache of user rating snapshots.
//
// A record is valid iff now - inserted_at < ttl; expired records are treated
// as absent and removed lazily on access. There is no background sweeper:
// the expected user population is small, and an optional size cap evicts the
// oldest-inserted record first when exceeded.
//
// The clock is injected so expiry is deterministic under test.
package cache

import (
	"sync"
	"time"

	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

// record is a stored snapshot with its insertion time.
type record struct {
	snapshot   models.UserSnapshot
	insertedAt time.Time
}

// SnapshotCache maps username to a rating snapshot with expiration.
// Safe for concurrent use.
type SnapshotCache struct {
	mu         sync.RWMutex
	records    map[string]record
	ttl        time.Duration
	maxEntries int // 0 = unbounded
	clock      func() time.Time

	stats statsCounters
}

// statsCounters tracks cache activity. Guarded by its own mutex so reads
// never contend with record access.
type statsCounters struct {
	mu        sync.Mutex
	hits      int64
	misses    int64
	evictions int64
}

// Stats is a read-only snapshot of cache state and counters.
type Stats struct {
	Entries        int
	OldestAge      time.Duration
	EstimatedBytes int64
	Hits           int64
	Misses         int64
	Evictions      int64
}

// Option configures a SnapshotCache.
type Option func(*SnapshotCache)

// WithClock replaces the time source. Tests use this to simulate expiry
// without sleeping.
func WithClock(clock func() time.Time) Option {
	return func(c *SnapshotCache) {
		c.clock = clock
	}
}

// WithMaxEntries caps the number of records. When a Put would exceed the
// cap, the oldest-inserted record is evicted first.
func WithMaxEntries(n int) Option {
	return func(c *SnapshotCache) {
		c.maxEntries = n
	}
}

// New creates a snapshot cache with the given TTL.
func New(ttl time.Duration, opts ...Option) *SnapshotCache {
	c := &SnapshotCache{
		records: make(map[string]record),
		ttl:     ttl,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the snapshot for username if a valid record exists.
// An expired record counts as absent and is removed. Absent is distinct
// from "fetch failed": the caller decides whether to attempt a fresh fetch.
func (c *SnapshotCache) Get(username string) (models.UserSnapshot, bool) {
	c.mu.RLock()
	rec, exists := c.records[username]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return models.UserSnapshot{}, false
	}

	if c.clock().Sub(rec.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have
		// refreshed the record.
		if cur, ok := c.records[username]; ok && cur.insertedAt.Equal(rec.insertedAt) {
			delete(c.records, username)
		}
		c.mu.Unlock()
		c.recordMiss()
		c.recordEviction()
		return models.UserSnapshot{}, false
	}

	c.recordHit()
	return rec.snapshot, true
}

// Put stores a snapshot for username, unconditionally overwriting any
// existing record (last-write-wins).
func (c *SnapshotCache) Put(username string, snapshot models.UserSnapshot) {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.records[username]; !exists && c.maxEntries > 0 && len(c.records) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.records[username] = record{snapshot: snapshot, insertedAt: now}
}

// Invalidate removes the record for username, if any.
func (c *SnapshotCache) Invalidate(username string) {
	c.mu.Lock()
	_, existed := c.records[username]
	delete(c.records, username)
	c.mu.Unlock()

	if existed {
		c.recordEviction()
	}
}

// Stats returns the current entry count, age of the oldest record, a rough
// memory estimate, and the activity counters.
func (c *SnapshotCache) Stats() Stats {
	now := c.clock()

	c.mu.RLock()
	entries := len(c.records)
	var oldest time.Duration
	var bytes int64
	for _, rec := range c.records {
		if age := now.Sub(rec.insertedAt); age > oldest {
			oldest = age
		}
		bytes += estimateBytes(rec.snapshot)
	}
	c.mu.RUnlock()

	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return Stats{
		Entries:        entries,
		OldestAge:      oldest,
		EstimatedBytes: bytes,
		Hits:           c.stats.hits,
		Misses:         c.stats.misses,
		Evictions:      c.stats.evictions,
	}
}

// Users returns the usernames currently cached, expired records included.
func (c *SnapshotCache) Users() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	users := make([]string, 0, len(c.records))
	for username := range c.records {
		users = append(users, username)
	}
	return users
}

// Sweep removes all expired records. Expiry works without it (Get evicts
// lazily); callers may run it opportunistically to reclaim memory.
func (c *SnapshotCache) Sweep() int {
	now := c.clock()
	removed := 0

	c.mu.Lock()
	for username, rec := range c.records {
		if now.Sub(rec.insertedAt) >= c.ttl {
			delete(c.records, username)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.stats.mu.Lock()
		c.stats.evictions += int64(removed)
		c.stats.mu.Unlock()
	}
	return removed
}

// evictOldestLocked removes the oldest-inserted record. Caller holds c.mu.
func (c *SnapshotCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for username, rec := range c.records {
		if first || rec.insertedAt.Before(oldestAt) {
			oldestKey = username
			oldestAt = rec.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.records, oldestKey)
		c.stats.mu.Lock()
		c.stats.evictions++
		c.stats.mu.Unlock()
	}
}

func (c *SnapshotCache) recordHit() {
	c.stats.mu.Lock()
	c.stats.hits++
	c.stats.mu.Unlock()
}

func (c *SnapshotCache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.misses++
	c.stats.mu.Unlock()
}

func (c *SnapshotCache) recordEviction() {
	c.stats.mu.Lock()
	c.stats.evictions++
	c.stats.mu.Unlock()
}

// estimateBytes approximates the heap footprint of a snapshot: string bytes
// plus a fixed per-entry overhead for struct and map bookkeeping.
func estimateBytes(s models.UserSnapshot) int64 {
	const entryOverhead = 48
	bytes := int64(len(s.Username)) + entryOverhead
	for _, r := range s.Ratings {
		bytes += int64(len(r.Slug)+len(r.Title)) + entryOverhead
	}
	return bytes
}
