package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/sharpedge/pickengine/internal/engine"
	"github.com/sharpedge/pickengine/internal/models"
)

// TotalBoostCap bounds the sum of confluence + MSRF + Jason Sim + SERP.
// This cap is the primary defense against score inflation; SERP alone can
// reach 4.3 before it.
const TotalBoostCap = 1.5

// SERPBoostCap bounds the individual external-intelligence boost.
const SERPBoostCap = 4.3

// Confluence levels, persisted for auditability.
const (
	ConfluenceHarmonic  = "HARMONIC_CONVERGENCE"
	ConfluenceStrong    = "STRONG"
	ConfluenceModerate  = "MODERATE"
	ConfluenceDivergent = "DIVERGENT"
)

// confluenceBoost scores research/esoteric alignment. STRONG requires an
// active hard signal (jarvis active, sharp SUCCESS, or a nonzero Jason Sim);
// alignment alone without one downgrades to MODERATE.
func confluenceBoost(research, esoteric float64, jarvisActive bool, sharpStatus engine.Status, jasonBoost float64) (float64, string) {
	alignment := 1 - math.Abs(research-esoteric)/10

	if research >= 8.0 && esoteric >= 8.0 {
		return 1.5, ConfluenceHarmonic
	}
	if alignment >= 0.80 {
		if jarvisActive || sharpStatus == engine.StatusSuccess || jasonBoost != 0 {
			return 0.3, ConfluenceStrong
		}
		return 0.1, ConfluenceModerate
	}
	if alignment >= 0.60 {
		return 0.1, ConfluenceModerate
	}
	return 0, ConfluenceDivergent
}

// msrfBoost is the market-structure resonance factor: a discrete boost when
// enough books agree on a dispersed-but-converging line. Levels are fixed;
// anything between them rounds down.
func msrfBoost(c models.Candidate, ctx *engine.Context) float64 {
	if ctx.Odds == nil {
		return 0
	}
	lines := ctx.Odds.LinesFor(c.Event.EventID, c.Market, c.Side)
	if len(lines) < 3 {
		return 0
	}
	mean := 0.0
	for _, l := range lines {
		mean += l.Line
	}
	mean /= float64(len(lines))
	maxDev := 0.0
	for _, l := range lines {
		if d := math.Abs(l.Line - mean); d > maxDev {
			maxDev = d
		}
	}
	switch {
	case len(lines) >= 5 && maxDev <= 0.25:
		return 1.0
	case len(lines) >= 4 && maxDev <= 0.5:
		return 0.5
	case maxDev <= 1.0:
		return 0.25
	default:
		return 0
	}
}

// jasonSimBoost is the post-pick confluence layer, signed and capped ±1.5.
// Its negative range exists to block low-confidence picks the base formula
// would otherwise let through.
func jasonSimBoost(c models.Candidate, ctx *engine.Context, base4 float64) (float64, []string) {
	switch {
	case c.Market == models.MarketSpread || c.Market == models.MarketMoneyline || c.Market == models.MarketSharp:
		winPct := impliedWinPct(c.OddsAmerican)
		if winPct <= 52 && base4 < 7.2 {
			return -1.5, []string{fmt.Sprintf("sim block: win%% %.1f <= 52 with base %.2f", winPct, base4)}
		}
		if winPct >= 58 {
			return clamp(-1.5, 1.5, (winPct-58)/10), []string{fmt.Sprintf("sim support: win%% %.1f", winPct)}
		}
		return 0, nil

	case c.Market == models.MarketTotal:
		if projectedVarianceHigh(c, ctx) {
			return -0.5, []string{"sim caution: projected totals variance HIGH"}
		}
		return 0, nil

	case c.Market.IsPlayerProp():
		if base4 >= 6.8 && environmentSupports(ctx) {
			return 0.75, []string{"sim support: prop environment favorable"}
		}
		return 0, nil
	}
	return 0, nil
}

// impliedWinPct converts American odds to an implied win percentage; a
// missing price reads as a coin flip.
func impliedWinPct(odds *int) float64 {
	if odds == nil {
		return 50
	}
	o := float64(*odds)
	if o < 0 {
		return -o / (-o + 100) * 100
	}
	return 100 / (o + 100) * 100
}

// projectedVarianceHigh flags totals whose cross-book spread is wide enough
// that the simulated distribution is untrustworthy.
func projectedVarianceHigh(c models.Candidate, ctx *engine.Context) bool {
	if ctx.Odds == nil {
		return false
	}
	lines := ctx.Odds.LinesFor(c.Event.EventID, c.Market, c.Side)
	if len(lines) < 2 {
		return false
	}
	lo, hi := lines[0].Line, lines[0].Line
	for _, l := range lines[1:] {
		lo = math.Min(lo, l.Line)
		hi = math.Max(hi, l.Line)
	}
	return hi-lo >= 2.0
}

// environmentSupports gates prop boosts on a fast-paced matchup.
func environmentSupports(ctx *engine.Context) bool {
	return ctx.Features != nil && ctx.Features.Pace >= 0.6
}

// serpBoost reads the pre-fetched intelligence for the event, individually
// capped before the total cap applies.
func serpBoost(ctx *engine.Context) (float64, []string) {
	if ctx.Intel == nil || ctx.Intel.Boost == 0 {
		return 0, nil
	}
	return clamp(0, SERPBoostCap, ctx.Intel.Boost), ctx.Intel.Reasons
}

// hookPenalty docks spreads laying the hook past a key number (3 and 7).
// Always ≤ 0, clamped to [-0.25, 0] by the formula.
func hookPenalty(c models.Candidate) float64 {
	if c.Market != models.MarketSpread {
		return 0
	}
	abs := math.Abs(c.Line)
	if abs == 3.5 || abs == 7.5 {
		if c.Line < 0 {
			// Favorite laying 3.5 or 7.5 gives away the key number.
			return -0.25
		}
	}
	return 0
}

// propCorrelationAdjustment nudges props that correlate with the game
// environment, clamped ±0.20 by the formula.
func propCorrelationAdjustment(c models.Candidate, ctx *engine.Context) float64 {
	if !c.Market.IsPlayerProp() || ctx.Features == nil {
		return 0
	}
	// Fast games lift Over props and drag Unders, mildly.
	lean := (ctx.Features.Pace - 0.5) * 0.4
	if strings.EqualFold(c.Side, models.SideUnder) {
		lean = -lean
	}
	return lean
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
