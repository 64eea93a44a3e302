// Package cache provides a TTL cache for fetched record sets so repeated
// report runs within a short window do not hammer the tracker APIs.
//
// Entries are keyed by (source, project, window) and checked for freshness
// lazily on read. Expired entries are kept until the next successful fetch
// overwrites them: a stale entry may be served explicitly when the caller
// opts into degraded mode after a fetch failure, but is never substituted
// silently.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/qaops/migratrack/internal/logfields"
	"github.com/qaops/migratrack/internal/observability"
	"github.com/qaops/migratrack/internal/tracker"
)

// Key identifies one cached fetch result.
type Key struct {
	Source     string
	Project    string
	WindowDays int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Source, k.Project, k.WindowDays)
}

// KeyFor derives the cache key for a client and query.
func KeyFor(client tracker.Client, query tracker.Query) Key {
	return Key{
		Source:     string(client.Role()),
		Project:    query.Project,
		WindowDays: query.SinceDays,
	}
}

// Outcome describes how a record set was obtained.
type Outcome string

const (
	// OutcomeHit means a fresh cached entry satisfied the lookup.
	OutcomeHit Outcome = "hit"
	// OutcomeFetched means the fetch function was invoked and succeeded.
	OutcomeFetched Outcome = "fetched"
	// OutcomeStale means the fetch failed and an expired entry was served
	// because the caller allowed degraded results.
	OutcomeStale Outcome = "stale"
	// OutcomeError means the fetch failed and nothing usable was cached.
	OutcomeError Outcome = "error"
)

// FetchFunc loads a record set when the cache cannot satisfy a lookup.
type FetchFunc func(ctx context.Context) (*tracker.RecordSet, error)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	StaleServes uint64
}

type entry struct {
	records  *tracker.RecordSet
	storedAt time.Time
}

// Cache is a thread-safe TTL cache of record sets.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*entry
	clock   clockwork.Clock
	stats   Stats
}

// Option configures optional cache behavior.
type Option func(*Cache)

// WithClock replaces the wall clock, used by tests to control expiry.
func WithClock(clk clockwork.Clock) Option {
	return func(c *Cache) {
		c.clock = clk
	}
}

// New creates a cache whose entries expire after ttl. A non-positive ttl
// means entries never expire.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		ttl:     ttl,
		entries: make(map[string]*entry),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a fresh cached record set, or (nil, false) on miss or expiry.
// The returned set is a copy so callers cannot mutate cached data.
func (c *Cache) Get(key Key) (*tracker.RecordSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || c.isExpired(e) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return cloneSet(e.records), true
}

// Put stores a record set under key with the current timestamp, replacing
// any previous entry.
func (c *Cache) Put(key Key, records *tracker.RecordSet) {
	if records == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = &entry{
		records:  cloneSet(records),
		storedAt: c.clock.Now(),
	}
}

// GetOrFetch returns the cached record set for key if fresh, otherwise
// invokes fetch and caches a successful result. When fetch fails and
// degraded is true, an expired entry is served alongside the fetch error so
// the caller can proceed with old data while still observing the failure.
// When fetch fails with nothing to fall back on, the fetch result is
// returned as-is.
func (c *Cache) GetOrFetch(ctx context.Context, key Key, degraded bool, fetch FetchFunc) (*tracker.RecordSet, Outcome, error) {
	if records, ok := c.Get(key); ok {
		observability.DebugContext(ctx, "Cache hit",
			logfields.Source(key.Source),
			logfields.Project(key.Project),
			logfields.Records(records.Count()))
		return records, OutcomeHit, nil
	}

	records, err := fetch(ctx)
	if err == nil {
		c.Put(key, records)
		return records, OutcomeFetched, nil
	}

	if degraded {
		if stale, age, ok := c.getStale(key); ok {
			observability.WarnContext(ctx, "Serving stale cache entry after fetch failure",
				logfields.Source(key.Source),
				logfields.Project(key.Project),
				logfields.Records(stale.Count()),
				logfields.Error(err),
				logfields.Age(age))
			c.mu.Lock()
			c.stats.StaleServes++
			c.mu.Unlock()
			return stale, OutcomeStale, err
		}
	}
	return records, OutcomeError, err
}

// Invalidate removes the entry for key, if present.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the effectiveness counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// getStale returns the entry for key regardless of freshness, with its age.
func (c *Cache) getStale(key Key) (*tracker.RecordSet, time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return nil, 0, false
	}
	return cloneSet(e.records), c.clock.Since(e.storedAt), true
}

func (c *Cache) isExpired(e *entry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.clock.Since(e.storedAt) > c.ttl
}

func cloneSet(rs *tracker.RecordSet) *tracker.RecordSet {
	if rs == nil {
		return nil
	}
	out := *rs
	out.Records = make([]tracker.TestRecord, len(rs.Records))
	copy(out.Records, rs.Records)
	return &out
}
