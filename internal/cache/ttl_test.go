package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTTLGetSet(t *testing.T) {
	c := NewTTL(5 * time.Minute)
	c.Set("k", 42)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	c := NewTTL(5 * time.Minute)
	base := time.Date(2026, 1, 29, 12, 0, 0, 0, time.UTC)
	c.now = clockAt(base)
	c.Set("k", "v")

	c.now = clockAt(base.Add(4 * time.Minute))
	_, ok := c.Get("k")
	assert.True(t, ok)

	c.now = clockAt(base.Add(6 * time.Minute))
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestTTLSetSweepsExpired(t *testing.T) {
	c := NewTTL(5 * time.Minute)
	base := time.Date(2026, 1, 29, 12, 0, 0, 0, time.UTC)
	c.now = clockAt(base)
	c.Set("stale", 1)

	c.now = clockAt(base.Add(10 * time.Minute))
	c.Set("fresh", 2)

	assert.Equal(t, 1, c.Len())
	snap := c.snapshot.Load().(map[string]entry)
	_, held := snap["stale"]
	assert.False(t, held, "expired entries drop on the next write")
}

func TestTTLOverwrite(t *testing.T) {
	c := NewTTL(time.Minute)
	c.Set("k", 1)
	c.Set("k", 2)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}
