package config

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/models"
)

// Criticality tiers drive how integration absence affects health.
type Criticality string

const (
	// Critical integrations being unreachable degrade health and may empty
	// the best-bets response.
	Critical Criticality = "CRITICAL"
	// DegradedOK integrations yield degraded health but operations continue.
	DegradedOK Criticality = "DEGRADED_OK"
	// Optional integrations are logged once on absence, no health impact.
	Optional Criticality = "OPTIONAL"
	// RelevanceGated integrations are required only for the sports they list.
	RelevanceGated Criticality = "RELEVANCE_GATED"
)

// IntegrationStatus is the configured/reachable state of one upstream.
type IntegrationStatus string

const (
	StatusConfigured  IntegrationStatus = "CONFIGURED"
	StatusMissing     IntegrationStatus = "MISSING"
	StatusUnreachable IntegrationStatus = "UNREACHABLE"
)

// Integration describes one named upstream dependency. SecretEnvs lists the
// accepted secret variable names with OR logic: any one present means
// CONFIGURED.
type Integration struct {
	Name           string
	SecretEnvs     []string
	Criticality    Criticality
	RelevantSports []models.Sport
}

// defaultIntegrations is the registry this deployment ships with.
var defaultIntegrations = []Integration{
	{Name: "market_data", SecretEnvs: []string{"ODDS_API_KEY", "MARKET_DATA_API_KEY"}, Criticality: Critical},
	{Name: "results", SecretEnvs: []string{"RESULTS_API_KEY", "SCORES_API_KEY"}, Criticality: Critical},
	{Name: "splits", SecretEnvs: []string{"SPLITS_API_KEY", "SHARP_SPLITS_KEY"}, Criticality: DegradedOK},
	{Name: "serp", SecretEnvs: []string{"SERP_API_KEY"}, Criticality: Optional},
	{Name: "weather", SecretEnvs: []string{"WEATHER_API_KEY"}, Criticality: RelevanceGated,
		RelevantSports: []models.Sport{models.SportNFL, models.SportMLB}},
}

// Registry tracks integration configuration and runtime reachability.
// Guards report reachability from concurrent fetch goroutines, so the
// runtime maps are mutex-protected.
type Registry struct {
	integrations []Integration

	mu          sync.Mutex
	unreachable map[string]bool
	loggedOnce  map[string]bool
}

// NewRegistry builds the registry from the default integration table.
func NewRegistry() *Registry {
	return &Registry{
		integrations: defaultIntegrations,
		unreachable:  make(map[string]bool),
		loggedOnce:   make(map[string]bool),
	}
}

// Status resolves one integration's current state.
func (r *Registry) Status(name string) IntegrationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked(name)
}

func (r *Registry) statusLocked(name string) IntegrationStatus {
	for _, in := range r.integrations {
		if in.Name != name {
			continue
		}
		if r.unreachable[name] {
			return StatusUnreachable
		}
		for _, env := range in.SecretEnvs {
			if os.Getenv(env) != "" {
				return StatusConfigured
			}
		}
		return StatusMissing
	}
	return StatusMissing
}

// MarkUnreachable records a runtime failure (5xx, 429, breaker open) for an
// integration. Cleared by MarkReachable on the next success.
func (r *Registry) MarkUnreachable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreachable[name] = true
}

// MarkReachable clears the unreachable flag after a successful call.
func (r *Registry) MarkReachable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.unreachable, name)
}

// HealthReport is the rollup consumed by health-style operations.
type HealthReport struct {
	OK           bool                         `json:"ok"`
	Degraded     bool                         `json:"degraded"`
	Integrations map[string]IntegrationStatus `json:"integrations"`
	Errors       []string                     `json:"errors"`
}

// Health evaluates every integration against its criticality tier for the
// given sport. Optional absences are logged exactly once and never affect
// health; relevance-gated integrations only count for their sports.
func (r *Registry) Health(sport models.Sport) HealthReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := HealthReport{
		OK:           true,
		Integrations: make(map[string]IntegrationStatus),
		Errors:       []string{},
	}
	for _, in := range r.integrations {
		status := r.statusLocked(in.Name)
		report.Integrations[in.Name] = status
		if status == StatusConfigured {
			continue
		}

		switch in.Criticality {
		case Critical:
			report.OK = false
			report.Degraded = true
			report.Errors = append(report.Errors, in.Name+": "+string(status))
		case DegradedOK:
			report.Degraded = true
		case Optional:
			if !r.loggedOnce[in.Name] {
				log.Info().Str("integration", in.Name).Msg("optional integration not configured")
				r.loggedOnce[in.Name] = true
			}
		case RelevanceGated:
			for _, s := range in.RelevantSports {
				if s == sport {
					report.Degraded = true
					report.Errors = append(report.Errors, in.Name+": "+string(status)+" (required for "+string(sport)+")")
					break
				}
			}
		}
	}
	return report
}
