// Package cache provides the in-process TTL cache used by slate building and
// the optional Redis-backed odds snapshot cache shared between workers.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

type entry struct {
	value   interface{}
	expires time.Time
}

// TTL is a snapshot-read cache: writes copy the map under a single lock,
// reads load an immutable snapshot without locking. That favors the scoring
// hot path, which reads far more often than the fetch jobs write.
type TTL struct {
	mu       sync.Mutex
	snapshot atomic.Value // map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

// NewTTL creates a cache with a fixed entry lifetime.
func NewTTL(ttl time.Duration) *TTL {
	c := &TTL{ttl: ttl, now: time.Now}
	c.snapshot.Store(map[string]entry{})
	return c
}

// Get returns the cached value and whether it is present and fresh.
func (c *TTL) Get(key string) (interface{}, bool) {
	snap := c.snapshot.Load().(map[string]entry)
	e, ok := snap[key]
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

// Set stores a value, replacing the snapshot. Expired entries are swept on
// the same pass so the map does not grow unbounded across slate days.
func (c *TTL) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.snapshot.Load().(map[string]entry)
	now := c.now()
	next := make(map[string]entry, len(old)+1)
	for k, e := range old {
		if now.Before(e.expires) {
			next[k] = e
		}
	}
	next[key] = entry{value: value, expires: now.Add(c.ttl)}
	c.snapshot.Store(next)
}

// Len counts live entries; used by health probes.
func (c *TTL) Len() int {
	snap := c.snapshot.Load().(map[string]entry)
	now := c.now()
	n := 0
	for _, e := range snap {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}
