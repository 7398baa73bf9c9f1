// Package config resolves environment-driven settings at startup and owns the
// integration registry with its criticality tiers. Everything here is
// validated once; the rest of the process trusts the resolved values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Settings is the validated runtime configuration.
type Settings struct {
	// VolumePath is the durable base directory for the pick store. Resolution
	// failure is fatal at startup.
	VolumePath string

	// ArchiveDSN, when set, enables the Postgres mirror of graded picks.
	ArchiveDSN string

	// RedisAddr, when set, enables the shared odds-snapshot cache.
	RedisAddr string

	// ExpertConsensusShadow keeps the expert consensus boost forced to zero.
	// On by default; only EXPERT_CONSENSUS_SHADOW=off lifts it.
	ExpertConsensusShadow bool

	// Per-call and batch deadlines for upstream fan-out.
	UpstreamCallTimeout time.Duration
	RequestBudget       time.Duration

	// CacheTTL floors at two minutes; sub-second freshness is a non-goal.
	CacheTTL time.Duration

	// SchedulerConfigPath optionally overrides the built-in job table.
	SchedulerConfigPath string

	// LiveFeedURL is the scoreboard websocket endpoint; empty disables the
	// live feed and every game stays SCHEDULED until graded.
	LiveFeedURL string

	// MetricsAddr, when set, serves Prometheus metrics on that address.
	MetricsAddr string
}

const minCacheTTL = 2 * time.Minute

// Load reads settings from the environment. The volume path is required; the
// caller must still run ResolveVolume on it before touching storage.
func Load() (*Settings, error) {
	volume := os.Getenv("PICKS_VOLUME_PATH")
	if volume == "" {
		return nil, fmt.Errorf("PICKS_VOLUME_PATH is required")
	}

	s := &Settings{
		VolumePath:            volume,
		ArchiveDSN:            os.Getenv("PICKS_ARCHIVE_DSN"),
		RedisAddr:             os.Getenv("PICKS_REDIS_ADDR"),
		ExpertConsensusShadow: os.Getenv("EXPERT_CONSENSUS_SHADOW") != "off",
		UpstreamCallTimeout:   durationEnv("UPSTREAM_CALL_TIMEOUT_SECS", 3*time.Second),
		RequestBudget:         durationEnv("REQUEST_BUDGET_SECS", 15*time.Second),
		CacheTTL:              durationEnv("CACHE_TTL_SECS", 5*time.Minute),
		SchedulerConfigPath:   os.Getenv("SCHEDULER_CONFIG_PATH"),
		LiveFeedURL:           os.Getenv("LIVE_FEED_WS_URL"),
		MetricsAddr:           os.Getenv("METRICS_ADDR"),
	}

	if s.CacheTTL < minCacheTTL {
		s.CacheTTL = minCacheTTL
	}
	return s, nil
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
