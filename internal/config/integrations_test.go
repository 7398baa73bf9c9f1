package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sharpedge/pickengine/internal/models"
)

func clearIntegrationEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		"ODDS_API_KEY", "MARKET_DATA_API_KEY",
		"RESULTS_API_KEY", "SCORES_API_KEY",
		"SPLITS_API_KEY", "SHARP_SPLITS_KEY",
		"SERP_API_KEY", "WEATHER_API_KEY",
	} {
		t.Setenv(env, "")
	}
}

func TestStatusSecretEnvOrLogic(t *testing.T) {
	clearIntegrationEnv(t)
	r := NewRegistry()
	assert.Equal(t, StatusMissing, r.Status("market_data"))

	t.Setenv("MARKET_DATA_API_KEY", "x")
	assert.Equal(t, StatusConfigured, r.Status("market_data"), "any one accepted env suffices")
}

func TestStatusUnreachableOverridesConfigured(t *testing.T) {
	clearIntegrationEnv(t)
	t.Setenv("ODDS_API_KEY", "x")
	r := NewRegistry()

	r.MarkUnreachable("market_data")
	assert.Equal(t, StatusUnreachable, r.Status("market_data"))
	r.MarkReachable("market_data")
	assert.Equal(t, StatusConfigured, r.Status("market_data"))
}

func TestHealthCriticalMissingIsNotOK(t *testing.T) {
	clearIntegrationEnv(t)
	r := NewRegistry()

	report := r.Health(models.SportNBA)
	assert.False(t, report.OK)
	assert.True(t, report.Degraded)
	assert.NotEmpty(t, report.Errors)
}

func TestHealthDegradedOKKeepsOK(t *testing.T) {
	clearIntegrationEnv(t)
	t.Setenv("ODDS_API_KEY", "x")
	t.Setenv("RESULTS_API_KEY", "x")
	r := NewRegistry()

	report := r.Health(models.SportNBA)
	assert.True(t, report.OK, "missing splits degrades without failing health")
	assert.True(t, report.Degraded)
}

func TestHealthOptionalNeverAffects(t *testing.T) {
	clearIntegrationEnv(t)
	t.Setenv("ODDS_API_KEY", "x")
	t.Setenv("RESULTS_API_KEY", "x")
	t.Setenv("SPLITS_API_KEY", "x")
	r := NewRegistry()

	report := r.Health(models.SportNBA)
	assert.True(t, report.OK)
	assert.False(t, report.Degraded, "serp is optional, weather irrelevant to NBA")
	assert.Equal(t, StatusMissing, report.Integrations["serp"])
}

// Slate fetches and the per-event splits fan-out report reachability from
// parallel goroutines against one registry.
func TestRegistryConcurrentAccess(t *testing.T) {
	clearIntegrationEnv(t)
	t.Setenv("ODDS_API_KEY", "x")
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch i % 4 {
				case 0:
					r.MarkUnreachable("market_data")
				case 1:
					r.MarkReachable("market_data")
				case 2:
					_ = r.Health(models.SportNBA)
				default:
					_ = r.Status("market_data")
				}
			}
		}(i)
	}
	wg.Wait()

	r.MarkReachable("market_data")
	assert.Equal(t, StatusConfigured, r.Status("market_data"))
}

func TestHealthRelevanceGatedBySport(t *testing.T) {
	clearIntegrationEnv(t)
	t.Setenv("ODDS_API_KEY", "x")
	t.Setenv("RESULTS_API_KEY", "x")
	t.Setenv("SPLITS_API_KEY", "x")
	r := NewRegistry()

	assert.False(t, r.Health(models.SportNBA).Degraded)
	nfl := r.Health(models.SportNFL)
	assert.True(t, nfl.Degraded, "weather is required for NFL")
	assert.True(t, nfl.OK)
}
