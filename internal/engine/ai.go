package engine

import (
	"fmt"

	"github.com/sharpedge/pickengine/internal/models"
)

// AI engine modes, persisted for auditability.
const (
	AIModeEnsemble          = "ENSEMBLE"
	AIModeHeuristicFallback = "HEURISTIC_FALLBACK"
)

// AIResult is the AI engine output.
type AIResult struct {
	Score   float64
	Reasons []string
	Mode    string
}

// Ensemble is a fitted linear blend over the feature vector. Coefficients
// come from offline training; an unfitted model or a signature mismatch
// falls back to the heuristic so the engine never raises.
type Ensemble struct {
	Fitted       bool
	FeatureCount int
	Intercept    float64
	Coefficients []float64
}

// DefaultEnsemble is the shipped model: five features, trained on graded
// picks across sports.
func DefaultEnsemble() *Ensemble {
	return &Ensemble{
		Fitted:       true,
		FeatureCount: 5,
		Intercept:    4.6,
		Coefficients: []float64{1.8, 1.1, 1.6, 0.35, 1.4},
	}
}

// AIEngine scores candidates from assembled features.
type AIEngine struct {
	model *Ensemble
}

// NewAIEngine wires the engine; a nil model behaves as unfitted.
func NewAIEngine(model *Ensemble) *AIEngine {
	return &AIEngine{model: model}
}

// Score runs the ensemble when its signature matches the feature vector,
// otherwise the heuristic weighted average. Output is always in [0,10].
func (e *AIEngine) Score(c models.Candidate, ctx *Context) AIResult {
	if ctx.Features == nil {
		return AIResult{
			Score:   5.0,
			Reasons: []string{"no features assembled; neutral prior"},
			Mode:    AIModeHeuristicFallback,
		}
	}
	vec := ctx.Features.vector()

	if e.model == nil || !e.model.Fitted || e.model.FeatureCount != len(vec) ||
		len(e.model.Coefficients) != len(vec) {
		return e.heuristic(vec)
	}

	score := e.model.Intercept
	for i, v := range vec {
		score += e.model.Coefficients[i] * normalizeFeature(i, v)
	}
	score = clamp(0, 10, score)

	return AIResult{
		Score: score,
		Reasons: []string{
			fmt.Sprintf("ensemble score %.2f from %d features", score, len(vec)),
			fmt.Sprintf("defensive rank %.2f, pace %.2f, usage vacuum %.2f",
				ctx.Features.DefensiveRank, ctx.Features.Pace, ctx.Features.UsageVacuum),
		},
		Mode: AIModeEnsemble,
	}
}

// heuristic is the fallback weighted average used when the ensemble cannot
// be trusted. Weighted toward matchup and usage, the two features with the
// strongest historical signal.
func (e *AIEngine) heuristic(vec []float64) AIResult {
	weights := []float64{0.30, 0.15, 0.25, 0.10, 0.20}
	score := 0.0
	for i, v := range vec {
		if i < len(weights) {
			score += weights[i] * normalizeFeature(i, v) * 10
		}
	}
	score = clamp(0, 10, score)
	return AIResult{
		Score:   score,
		Reasons: []string{fmt.Sprintf("heuristic fallback score %.2f", score)},
		Mode:    AIModeHeuristicFallback,
	}
}

// normalizeFeature maps each raw feature onto [0,1] favoring the pick side.
func normalizeFeature(idx int, v float64) float64 {
	switch idx {
	case 3: // rest days, capped at 5
		return clamp(0, 1, v/5.0)
	case 4: // recent form, -1..1
		return clamp(0, 1, (v+1)/2)
	default:
		return clamp(0, 1, v)
	}
}
