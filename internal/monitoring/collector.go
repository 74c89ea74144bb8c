// Package monitoring tracks in-process engine counters: probability cache
// behavior, relaxation depth, and write-back health.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsSnapshot holds a point-in-time view of engine health.
type MetricsSnapshot struct {
	// Probability cache.
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	// Cache reads that errored and degraded to a recompute.
	CacheBypasses int64 `json:"cache_bypasses"`

	// Relaxation outcomes, indexed by the level that produced the
	// estimate. Level 0 counts computations where even the program-wide
	// query returned nothing.
	LevelHits [5]int64 `json:"level_hits"`

	// Async cache write-back.
	WritesQueued  int64 `json:"writes_queued"`
	WritesDropped int64 `json:"writes_dropped"`
	WriteFailures int64 `json:"write_failures"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector accumulates counters. All methods are safe for concurrent use
// and safe on a nil receiver, so callers can wire metrics optionally.
type Collector struct {
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	cacheBypasses atomic.Int64

	levelHits [5]atomic.Int64

	writesQueued  atomic.Int64
	writesDropped atomic.Int64
	writeFailures atomic.Int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) CacheHit() {
	if c != nil {
		c.cacheHits.Add(1)
	}
}

func (c *Collector) CacheMiss() {
	if c != nil {
		c.cacheMisses.Add(1)
	}
}

func (c *Collector) CacheBypass() {
	if c != nil {
		c.cacheBypasses.Add(1)
	}
}

// LevelHit records which relaxation level satisfied a computation. Level 0
// means no historical rows existed at any level.
func (c *Collector) LevelHit(level int) {
	if c != nil && level >= 0 && level < len(c.levelHits) {
		c.levelHits[level].Add(1)
	}
}

func (c *Collector) WriteQueued() {
	if c != nil {
		c.writesQueued.Add(1)
	}
}

func (c *Collector) WriteDropped() {
	if c != nil {
		c.writesDropped.Add(1)
	}
}

func (c *Collector) WriteFailure() {
	if c != nil {
		c.writeFailures.Add(1)
	}
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{CollectedAt: time.Now().UTC()}
	if c == nil {
		return snap
	}
	snap.CacheHits = c.cacheHits.Load()
	snap.CacheMisses = c.cacheMisses.Load()
	snap.CacheBypasses = c.cacheBypasses.Load()
	for i := range c.levelHits {
		snap.LevelHits[i] = c.levelHits[i].Load()
	}
	snap.WritesQueued = c.writesQueued.Load()
	snap.WritesDropped = c.writesDropped.Load()
	snap.WriteFailures = c.writeFailures.Load()
	return snap
}
