package monitoring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()
	c.CacheHit()
	c.CacheHit()
	c.CacheMiss()
	c.CacheBypass()
	c.LevelHit(1)
	c.LevelHit(4)
	c.LevelHit(0)
	c.WriteQueued()
	c.WriteFailure()

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.CacheHits)
	assert.Equal(t, int64(1), snap.CacheMisses)
	assert.Equal(t, int64(1), snap.CacheBypasses)
	assert.Equal(t, int64(1), snap.LevelHits[0])
	assert.Equal(t, int64(1), snap.LevelHits[1])
	assert.Equal(t, int64(1), snap.LevelHits[4])
	assert.Equal(t, int64(1), snap.WritesQueued)
	assert.Equal(t, int64(1), snap.WriteFailures)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollectorNilSafe(t *testing.T) {
	var c *Collector
	c.CacheHit()
	c.LevelHit(2)
	c.WriteFailure()

	snap := c.Snapshot()
	assert.Zero(t, snap.CacheHits)
}

func TestCollectorOutOfRangeLevelIgnored(t *testing.T) {
	c := NewCollector()
	c.LevelHit(-1)
	c.LevelHit(5)
	snap := c.Snapshot()
	for _, n := range snap.LevelHits {
		assert.Zero(t, n)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CacheMiss()
			c.LevelHit(2)
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(50), snap.CacheMisses)
	assert.Equal(t, int64(50), snap.LevelHits[2])
}
