// Package engine implements the four base scoring engines (AI, Research,
// Esoteric, Jarvis). Each engine is a pure function from (candidate, context)
// to a score in [0,10] plus reasons and diagnostics. Engines never fail and
// never read each other's output; aggregation is the scoring package's job.
package engine

import (
	"time"

	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/upstream"
)

// Status reports how a signal's inputs resolved.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusNoData   Status = "NO_DATA"
	StatusError    Status = "ERROR"
	StatusDisabled Status = "DISABLED"
)

// Context is the per-candidate snapshot assembled once per slate. Engines
// read it; nothing writes it after assembly.
type Context struct {
	Now        time.Time
	GameStatus models.GameStatus

	// Consensus game lines for the candidate's event, nil when no book
	// published one. Esoteric and Jarvis magnitude inputs draw from these.
	Spread *float64
	Total  *float64

	// Splits feed the sharp signal and nothing else. SplitsStatus is the
	// provider outcome; when it is not SUCCESS the sharp signal must report
	// strength NONE regardless of what line data suggests.
	Splits          *upstream.Splits
	SplitsStatus    Status
	SplitsSourceAPI string

	// Odds feed the line-variance signal and nothing else.
	Odds          *upstream.OddsSnapshot
	OddsSourceAPI string

	// Intel is the pre-fetched external intelligence for the event, nil when
	// the integration is absent or the prefetch failed.
	Intel *upstream.EventIntel

	// Features feed the AI engine; nil forces the heuristic fallback.
	Features *Features

	// ResearchWeights are the learned signal weights for the candidate's
	// (sport, market) group; nil uses engine defaults.
	ResearchWeights models.SignalWeights

	// TotalsCalibration is the learned totals bias correction for the
	// candidate's sport, already signed. The formula clamps it to ±0.75.
	TotalsCalibration float64
}

// Features are the assembled model inputs for the AI engine. All values are
// pre-normalized by the feature assembler.
type Features struct {
	DefensiveRank float64 // 0 (best defense faced) .. 1 (worst)
	Pace          float64 // 0 .. 1 relative pace
	UsageVacuum   float64 // 0 .. 1 share of vacated usage
	RestDays      float64 // days of rest, capped at 5
	RecentForm    float64 // -1 .. 1 form differential
}

// vector renders features in the fixed order the ensemble was fitted on.
func (f *Features) vector() []float64 {
	return []float64{f.DefensiveRank, f.Pace, f.UsageVacuum, f.RestDays, f.RecentForm}
}

// Signal is the capability set each research and esoteric signal exposes.
// Composites iterate signals generically; adding one requires no composite
// change.
type Signal interface {
	Name() string
	Weight() float64
	Compute(c models.Candidate, ctx *Context) (score float64, reasons []string, status Status)
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
