package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Snapshots caches serialized upstream payloads (odds snapshots, SERP
// intelligence) in Redis so concurrent request workers and the prop fetch
// jobs share one warm copy. Without Redis, or on any Redis error, it degrades
// to the in-process TTL cache; caching is never load-bearing for correctness.
type Snapshots struct {
	rdb   *redis.Client
	local *TTL
	ttl   time.Duration
}

// NewSnapshots builds the snapshot cache. addr may be empty to run purely
// in-process.
func NewSnapshots(addr string, ttl time.Duration) *Snapshots {
	s := &Snapshots{local: NewTTL(ttl), ttl: ttl}
	if addr != "" {
		s.rdb = redis.NewClient(&redis.Options{Addr: addr})
	}
	return s
}

// NewSnapshotsWithClient injects a prepared client; used by tests with a mock.
func NewSnapshotsWithClient(rdb *redis.Client, ttl time.Duration) *Snapshots {
	return &Snapshots{rdb: rdb, local: NewTTL(ttl), ttl: ttl}
}

// Get unmarshals a cached payload into dest, reporting whether it was found.
func (s *Snapshots) Get(ctx context.Context, key string, dest interface{}) bool {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, key).Bytes()
		if err == nil {
			if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
				return true
			}
		} else if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("snapshot cache read failed, falling back to local")
		}
	}
	raw, ok := s.local.Get(key)
	if !ok {
		return false
	}
	if b, isBytes := raw.([]byte); isBytes {
		return json.Unmarshal(b, dest) == nil
	}
	return false
}

// Set serializes and stores a payload in both tiers. Errors are logged and
// swallowed; a cold cache just means an extra upstream call later.
func (s *Snapshots) Set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("snapshot cache marshal failed")
		return
	}
	s.local.Set(key, raw)
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("snapshot cache write failed")
		}
	}
}
