package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpedge/pickengine/internal/engine"
	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/upstream"
)

func testScorer() *Scorer {
	return NewScorer(engine.NewAIEngine(engine.DefaultEnsemble()), true)
}

func testCandidate() models.Candidate {
	odds := -110
	return models.Candidate{
		Event: models.Event{
			EventID:   "evt-1",
			Sport:     models.SportNBA,
			Home:      "Lakers",
			Away:      "Celtics",
			StartTime: time.Date(2026, 1, 30, 2, 10, 0, 0, time.UTC),
		},
		Market:       models.MarketTotal,
		Side:         models.SideOver,
		Line:         224.5,
		OddsAmerican: &odds,
		Book:         "draftkings",
	}
}

func testContext() *engine.Context {
	total := 224.5
	return &engine.Context{
		Now:          time.Date(2026, 1, 29, 18, 30, 0, 0, time.UTC),
		GameStatus:   models.StatusScheduled,
		Total:        &total,
		SplitsStatus: engine.StatusNoData,
	}
}

func TestScoreCandidateProducesValidPick(t *testing.T) {
	p := testScorer().ScoreCandidate(testCandidate(), testContext())
	require.NotNil(t, p)
	require.NoError(t, p.Validate())

	assert.Equal(t, "2026-01-29", p.ETDate, "ET date derives from event start, not created_at")
	assert.Equal(t, "9:10 PM ET", p.EventStartTimeET)
	assert.Len(t, p.PickID, 12)
	assert.GreaterOrEqual(t, p.FinalScore, 0.0)
	assert.LessOrEqual(t, p.FinalScore, 10.0)
	assert.LessOrEqual(t, p.TotalBoosts, TotalBoostCap+1e-9)
	assert.Nil(t, p.Result, "freshly scored picks are ungraded")
}

func TestScoreCandidateDeterministic(t *testing.T) {
	s := testScorer()
	a := s.ScoreCandidate(testCandidate(), testContext())
	b := s.ScoreCandidate(testCandidate(), testContext())
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.FinalScore, b.FinalScore)
	assert.Equal(t, a.PickID, b.PickID)
	assert.Equal(t, a.Tier, b.Tier)
	assert.Equal(t, a.EsotericScore, b.EsotericScore)
}

func TestJarvisSevenFieldsAlwaysPresent(t *testing.T) {
	p := testScorer().ScoreCandidate(testCandidate(), testContext())
	require.NotNil(t, p)
	assert.NotNil(t, p.JarvisTriggersHit)
	assert.NotNil(t, p.JarvisReasons)
	assert.NotNil(t, p.JarvisFailReasons)
	assert.NotNil(t, p.JarvisInputsUsed)
	assert.Equal(t, p.JarvisRS, p.JarvisScore)
}

func TestExpertShadowZeroesBoost(t *testing.T) {
	ctx := testContext()
	ctx.Intel = &upstream.EventIntel{Boost: 3.0, Reasons: []string{"expert consensus strong"}}

	shadowed := NewScorer(engine.NewAIEngine(engine.DefaultEnsemble()), true).
		ScoreCandidate(testCandidate(), ctx)
	require.NotNil(t, shadowed)
	assert.Zero(t, shadowed.ExpertConsensusBoost)

	open := NewScorer(engine.NewAIEngine(engine.DefaultEnsemble()), false).
		ScoreCandidate(testCandidate(), ctx)
	require.NotNil(t, open)
	assert.InDelta(t, 0.3, open.ExpertConsensusBoost, 1e-9)
	assert.LessOrEqual(t, open.ExpertConsensusBoost, 0.35)
}

func TestLiveAdjustmentOnlyWhenLive(t *testing.T) {
	ctx := testContext()
	ctx.Odds = &upstream.OddsSnapshot{
		Sport: models.SportNBA,
		Lines: []upstream.BookLine{
			{EventID: "evt-1", Market: models.MarketTotal, Side: models.SideOver, Line: 224.5, Book: "draftkings"},
			{EventID: "evt-1", Market: models.MarketTotal, Side: models.SideOver, Line: 227.5, Book: "fanduel"},
		},
	}

	scheduled := testScorer().ScoreCandidate(testCandidate(), ctx)
	require.NotNil(t, scheduled)
	assert.Zero(t, scheduled.LiveAdjustment)

	ctx.GameStatus = models.StatusLive
	live := testScorer().ScoreCandidate(testCandidate(), ctx)
	require.NotNil(t, live)
	assert.NotZero(t, live.LiveAdjustment)
	assert.LessOrEqual(t, live.LiveAdjustment, 0.5)
	assert.GreaterOrEqual(t, live.LiveAdjustment, -0.5)
}

func TestTotalsCalibrationClampedAndScoped(t *testing.T) {
	ctx := testContext()
	ctx.TotalsCalibration = 2.0

	p := testScorer().ScoreCandidate(testCandidate(), ctx)
	require.NotNil(t, p)
	assert.InDelta(t, 0.75, p.TotalsCalibration, 1e-9, "clamped to +0.75")

	spread := testCandidate()
	spread.Market = models.MarketSpread
	spread.Side = "Lakers"
	spread.Line = -3.0
	sp := testScorer().ScoreCandidate(spread, ctx)
	require.NotNil(t, sp)
	assert.Zero(t, sp.TotalsCalibration, "calibration applies to totals only")
}

func TestHookPenaltyOnFavoriteKeyNumbers(t *testing.T) {
	c := testCandidate()
	c.Market = models.MarketSpread
	c.Side = "Lakers"
	c.Line = -7.5

	p := testScorer().ScoreCandidate(c, testContext())
	require.NotNil(t, p)
	assert.Equal(t, -0.25, p.HookPenalty)

	c.Line = 7.5 // underdog getting the hook keeps the key number
	p = testScorer().ScoreCandidate(c, testContext())
	require.NotNil(t, p)
	assert.Zero(t, p.HookPenalty)
}

func TestContextModifierClamped(t *testing.T) {
	ctx := testContext()
	ctx.Features = &engine.Features{RecentForm: 1.0, RestDays: 5, Pace: 0.5}
	p := testScorer().ScoreCandidate(testCandidate(), ctx)
	require.NotNil(t, p)
	assert.LessOrEqual(t, p.ContextModifier, 0.35)
	assert.GreaterOrEqual(t, p.ContextModifier, -0.35)
	assert.Equal(t, p.ContextModifier, p.ContextScore)
}

func TestImpliedWinPct(t *testing.T) {
	minus150 := -150
	plus130 := 130
	assert.InDelta(t, 60.0, impliedWinPct(&minus150), 0.01)
	assert.InDelta(t, 43.48, impliedWinPct(&plus130), 0.01)
	assert.Equal(t, 50.0, impliedWinPct(nil))
}
