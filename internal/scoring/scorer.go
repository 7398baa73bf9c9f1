// Package scoring turns candidates into picks: the four-engine weighted
// base, the bounded additive adjustments, tier assignment and the output
// gates. Every clamp in the final-score formula is a contract; no caller
// bypasses one, and every adjustment is persisted as its own field.
package scoring

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/engine"
	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/telemetry"
	"github.com/sharpedge/pickengine/internal/timeutil"
)

// Engine weights are constants. They deliberately do not sum to 1.0; the
// additive modifiers that follow carry the remainder of the scale.
const (
	weightAI       = 0.25
	weightResearch = 0.35
	weightEsoteric = 0.20
	weightJarvis   = 0.20
)

// Adjustment bounds, enforced here and nowhere else.
const (
	contextModifierCap = 0.35
	liveAdjustmentCap  = 0.5
	totalsCalCap       = 0.75
	hookPenaltyFloor   = -0.25
	expertBoostCap     = 0.35
	propCorrCap        = 0.20
)

// Scorer evaluates one candidate at a time. It is stateless and safe for
// concurrent use; slates are scored in parallel.
type Scorer struct {
	ai       *engine.AIEngine
	research *engine.ResearchEngine
	esoteric *engine.EsotericEngine
	jarvis   *engine.JarvisEngine

	// expertShadow forces the expert consensus boost to zero. On in every
	// known deployment; the non-shadow path exists behind config only.
	expertShadow bool
}

// NewScorer wires the four engines.
func NewScorer(ai *engine.AIEngine, expertShadow bool) *Scorer {
	return &Scorer{
		ai:           ai,
		research:     engine.NewResearchEngine(),
		esoteric:     engine.NewEsotericEngine(),
		jarvis:       engine.NewJarvisEngine(),
		expertShadow: expertShadow,
	}
}

// ScoreCandidate produces a fully populated pick, or nil when an internal
// precondition breaks (logged, counted, never panics outward).
func (s *Scorer) ScoreCandidate(c models.Candidate, ctx *engine.Context) (pick *models.Pick) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.InternalBugs.Inc()
			log.Error().Interface("panic", r).Str("event", c.Event.EventID).
				Str("market", string(c.Market)).Msg("scoring precondition violated; candidate dropped")
			pick = nil
		}
	}()

	aiRes := s.ai.Score(c, ctx)
	resRes := s.research.Score(c, ctx)
	esoRes := s.esoteric.Score(c, ctx)
	jarRes := s.jarvis.Score(c, ctx)

	base4 := weightAI*aiRes.Score + weightResearch*resRes.Score +
		weightEsoteric*esoRes.Score + weightJarvis*jarRes.RS

	// Boosts. Jason Sim is computed before confluence because confluence's
	// STRONG gate treats a nonzero sim as an active signal.
	jason, jasonReasons := jasonSimBoost(c, ctx, base4)
	jason = clamp(-1.5, 1.5, jason)
	confluence, confluenceLevel := confluenceBoost(resRes.Score, esoRes.Score, jarRes.Active, resRes.Sharp.Status, jason)
	msrf := msrfBoost(c, ctx)
	serp, serpReasons := serpBoost(ctx)
	totalBoosts := math.Min(confluence+msrf+jason+serp, TotalBoostCap)

	contextMod := clamp(-contextModifierCap, contextModifierCap, contextModifier(ctx))
	ensembleAdj := ensembleAdjustment(aiRes)
	liveAdj := 0.0
	if ctx.GameStatus == models.StatusLive {
		liveAdj = clamp(-liveAdjustmentCap, liveAdjustmentCap, liveAdjustment(resRes))
	}
	totalsCal := 0.0
	if c.Market == models.MarketTotal {
		totalsCal = clamp(-totalsCalCap, totalsCalCap, ctx.TotalsCalibration)
	}
	hook := clamp(hookPenaltyFloor, 0, hookPenalty(c))
	expert := 0.0
	if !s.expertShadow && ctx.Intel != nil {
		expert = clamp(0, expertBoostCap, ctx.Intel.Boost/10)
	}
	propCorr := clamp(-propCorrCap, propCorrCap, propCorrelationAdjustment(c, ctx))

	finalScore := clamp(0, 10,
		base4+contextMod+totalBoosts+ensembleAdj+liveAdj+totalsCal+hook+expert+propCorr)

	titanium := EvaluateTitanium(aiRes.Score, resRes.Score, esoRes.Score, jarRes.RS, finalScore)
	tier := assignTier(aiRes.Score, resRes.Score, esoRes.Score, jarRes.RS, finalScore, titanium)

	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}

	p := &models.Pick{
		PickID:       c.PickID(),
		Sport:        c.Event.Sport,
		EventID:      c.Event.EventID,
		Market:       c.Market,
		Side:         c.Side,
		Line:         c.Line,
		PlayerID:     c.PlayerID,
		PlayerName:   c.PlayerName,
		Book:         c.Book,
		OddsAmerican: c.OddsAmerican,
		Home:         c.Event.Home,
		Away:         c.Event.Away,

		AIScore:       aiRes.Score,
		ResearchScore: resRes.Score,
		EsotericScore: esoRes.Score,
		JarvisScore:   jarRes.RS,

		ContextModifier: contextMod,
		ContextScore:    contextMod,
		FinalScore:      finalScore,
		Tier:            tier,

		ConfluenceBoost:       confluence,
		ConfluenceLevel:       confluenceLevel,
		MSRFBoost:             msrf,
		JasonSimBoost:         jason,
		SERPBoost:             serp,
		TotalBoosts:           totalBoosts,
		EnsembleAdjustment:    ensembleAdj,
		LiveAdjustment:        liveAdj,
		TotalsCalibration:     totalsCal,
		HookPenalty:           hook,
		ExpertConsensusBoost:  expert,
		PropCorrelationAdjust: propCorr,

		AIReasons:       append([]string{}, aiRes.Reasons...),
		ResearchReasons: append([]string{}, resRes.Reasons...),
		EsotericReasons: append([]string{}, esoRes.Reasons...),
		JarvisReasons:   append([]string{}, jarRes.Reasons...),

		AIMode:         aiRes.Mode,
		SharpStrength:  resRes.Sharp.Strength,
		SharpStatus:    string(resRes.Sharp.Status),
		SharpSourceAPI: resRes.Sharp.SourceAPI,
		LineSourceAPI:  resRes.Line.SourceAPI,

		JarvisRS:          jarRes.RS,
		JarvisActive:      jarRes.Active,
		JarvisHitsCount:   jarRes.HitsCount,
		JarvisTriggersHit: jarRes.TriggersHit,
		JarvisFailReasons: jarRes.FailReasons,
		JarvisInputsUsed:  jarRes.InputsUsed,

		TitaniumTriggered:        titanium.Triggered,
		TitaniumCount:            titanium.Count,
		TitaniumQualifiedEngines: titanium.QualifiedEngines,

		CreatedAt:        now.UTC(),
		EventStartTimeET: timeutil.DisplayET(c.Event.StartTime),
		ETDate:           timeutil.ETDateOf(c.Event.StartTime),

		Result: nil,
	}
	if len(jasonReasons) > 0 {
		p.ResearchReasons = append(p.ResearchReasons, jasonReasons...)
	}
	if len(serpReasons) > 0 && serp > 0 {
		p.ResearchReasons = append(p.ResearchReasons, serpReasons...)
	}

	if err := p.Validate(); err != nil {
		telemetry.ValidationFailures.WithLabelValues("score").Inc()
		log.Error().Err(err).Msg("scored pick failed validation; dropped")
		return nil
	}
	return p
}

// contextModifier folds situational features (rest, form) into a small
// signed modifier. The ±0.35 clamp is applied by the caller.
func contextModifier(ctx *engine.Context) float64 {
	if ctx.Features == nil {
		return 0
	}
	f := ctx.Features
	return 0.2*f.RecentForm + 0.05*(math.Min(f.RestDays, 5)-2)/3
}

// ensembleAdjustment is tri-state by contract: the fitted ensemble earns a
// half-point swing at its extremes, the fallback earns nothing.
func ensembleAdjustment(ai engine.AIResult) float64 {
	if ai.Mode != engine.AIModeEnsemble {
		return 0
	}
	switch {
	case ai.Score >= 7.5:
		return 0.5
	case ai.Score <= 3.0:
		return -0.5
	default:
		return 0
	}
}

// liveAdjustment leans on in-game line movement once a game is LIVE.
func liveAdjustment(res engine.ResearchResult) float64 {
	if res.Line.Status != engine.StatusSuccess {
		return 0
	}
	return res.Line.BestEdge * 0.25
}
