package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpedge/pickengine/internal/models"
)

func jarvisCandidate(line float64) models.Candidate {
	return models.Candidate{
		Event:  models.Event{EventID: "evt-1", Sport: models.SportNBA},
		Market: models.MarketTotal,
		Side:   models.SideOver,
		Line:   line,
		Book:   "draftkings",
	}
}

func TestJarvisNoInputsStaysBaseline(t *testing.T) {
	res := NewJarvisEngine().Score(jarvisCandidate(0), &Context{Now: time.Now()})

	assert.Equal(t, 4.5, res.RS)
	assert.False(t, res.Active)
	assert.Zero(t, res.HitsCount)
	assert.NotEmpty(t, res.FailReasons, "zero-input case must explain itself")
	require.NotNil(t, res.TriggersHit)
	require.NotNil(t, res.Reasons)
	require.NotNil(t, res.InputsUsed)
	assert.Empty(t, res.InputsUsed)
}

func TestJarvisNoTriggersKeepsBaselineWithFailReason(t *testing.T) {
	// 20 is not sacred and its digit sum 2 is not sacred.
	res := NewJarvisEngine().Score(jarvisCandidate(20), &Context{Now: time.Now()})

	assert.Equal(t, 4.5, res.RS)
	assert.False(t, res.Active)
	assert.NotEmpty(t, res.FailReasons)
	assert.Empty(t, res.TriggersHit)
	assert.Contains(t, res.InputsUsed, "line")
}

func TestJarvisSingleTrigger(t *testing.T) {
	res := NewJarvisEngine().Score(jarvisCandidate(7), &Context{Now: time.Now()})

	assert.True(t, res.Active)
	assert.Equal(t, 1, res.HitsCount)
	assert.InDelta(t, 4.5+1.6, res.RS, 1e-9)
	assert.Empty(t, res.FailReasons)
}

func TestJarvisStackedTriggersDecay(t *testing.T) {
	spread := 7.0
	total := 221.0 // digit sum 5, not sacred; 221 not sacred
	ctx := &Context{Now: time.Now(), Spread: &spread, Total: &total}
	// line 13 sacred, digit sum 4 not; spread 7 sacred.
	res := NewJarvisEngine().Score(jarvisCandidate(13), ctx)

	require.Equal(t, 2, res.HitsCount)
	assert.InDelta(t, 4.5+1.6+1.6*0.70, res.RS, 1e-9)
	assert.Equal(t, []string{"line=13", "spread=7"}, res.TriggersHit, "fixed evaluation order")
}

func TestJarvisDigitSumTrigger(t *testing.T) {
	// 223 digit sum is 7: sacred via reduction, 223 itself is not.
	res := NewJarvisEngine().Score(jarvisCandidate(223), &Context{Now: time.Now()})
	require.Equal(t, 1, res.HitsCount)
	assert.Equal(t, []string{"line digit-sum=7"}, res.TriggersHit)
}

func TestJarvisRSCappedAtTen(t *testing.T) {
	spread := 7.0
	total := 227.0 // 227 digit sum 11 sacred
	ctx := &Context{Now: time.Now(), Spread: &spread, Total: &total}
	res := NewJarvisEngine().Score(jarvisCandidate(33), ctx)

	assert.LessOrEqual(t, res.RS, 10.0)
	assert.True(t, res.Active)
}
