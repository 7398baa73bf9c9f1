package grader

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/store"
	"github.com/sharpedge/pickengine/internal/timeutil"
	"github.com/sharpedge/pickengine/internal/upstream"
)

// auditHarness persists a graded history for yesterday's ET date and returns
// a grader over it.
func auditHarness(t *testing.T) (*Grader, *store.WeightStore, *store.AuditWriter, string) {
	t.Helper()
	dir := t.TempDir()
	picks, err := store.Open(dir)
	require.NoError(t, err)
	ws := store.NewWeightStore(dir)
	aw := store.NewAuditWriter(dir)
	g := New(picks, ws, aw, &fakeResults{}, &fakeClosing{},
		upstream.NewGuard("results", time.Second, 0, nil), nil)
	yesterday := timeutil.ETDateOf(time.Now().AddDate(0, 0, -1))
	return g, ws, aw, yesterday
}

func gradedHistoryPick(t *testing.T, g *Grader, id, etDate string, sport models.Sport, won bool) {
	t.Helper()
	p := pendingPick(id, models.MarketTotal, models.SideOver, 224.5)
	p.Sport = sport
	p.EventID = "evt-" + id
	p.ETDate = etDate
	// Winners carry high engine scores so every signal correlates positively
	// with outcomes.
	score := 3.0
	result := models.ResultLoss
	if won {
		score = 9.0
		result = models.ResultWin
	}
	p.AIScore, p.ResearchScore, p.EsotericScore, p.JarvisScore = score, score, score, score

	status, err := g.picks.PersistPick(p)
	require.NoError(t, err)
	require.Equal(t, store.PersistLogged, status)
	actual := 230.0
	require.NoError(t, g.picks.MarkGraded(p.PickID, p.ETDate, result, &actual, time.Now(), nil, nil, "C"))
}

func TestAuditTunesAndRenormalizes(t *testing.T) {
	g, ws, aw, yesterday := auditHarness(t)

	for i := 0; i < 24; i++ {
		gradedHistoryPick(t, g, fmt.Sprintf("%012d", i), yesterday, models.SportNBA, i < 14)
	}

	snap, err := g.Audit(3)
	require.NoError(t, err)

	assert.Equal(t, 24, snap.PicksAudited)
	require.Len(t, snap.Groups, 1)
	perf := snap.Groups[0]
	assert.Equal(t, "NBA", perf.Sport)
	assert.Equal(t, "TOTAL", perf.Market)
	assert.Equal(t, 14, perf.Wins)
	assert.Equal(t, 10, perf.Losses)
	assert.InDelta(t, 14.0/24.0, perf.HitRate, 1e-9)
	assert.Greater(t, perf.Correlation, 0.9, "scores were constructed to predict outcomes")
	assert.InDelta(t, 5.5, perf.MAE, 1e-9, "|230 - 224.5| on every pick")
	assert.InDelta(t, 5.5, perf.Bias, 1e-9)

	assert.NotEmpty(t, snap.WeightDiffs, "a trained group must report its moves")

	wb, err := ws.Load()
	require.NoError(t, err)
	weights := wb.Get(models.SportNBA, models.MarketTotal)
	require.NotNil(t, weights)
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "weights renormalize to 1.0 after tuning")

	latest, err := aw.ReadLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, snap.ETDate, latest.ETDate)

	st, err := ws.Status()
	require.NoError(t, err)
	require.NotNil(t, st.LastRunAt)
	assert.Equal(t, 24, st.PicksAudited)
}

func TestAuditHoldsSmallGroups(t *testing.T) {
	g, ws, _, yesterday := auditHarness(t)

	for i := 0; i < 5; i++ {
		gradedHistoryPick(t, g, fmt.Sprintf("%012d", i), yesterday, models.SportNHL, i%2 == 0)
	}

	snap, err := g.Audit(3)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.PicksAudited)
	assert.Empty(t, snap.WeightDiffs)
	assert.NotEmpty(t, snap.Notes, "held groups are reported, not silently skipped")

	wb, err := ws.Load()
	require.NoError(t, err)
	assert.Nil(t, wb.Get(models.SportNHL, models.MarketTotal), "below the sample floor nothing is written")
}

func TestAuditIgnoresUngradedAndOutOfWindow(t *testing.T) {
	g, _, _, yesterday := auditHarness(t)

	// Pending pick: persisted but never graded.
	p := pendingPick("bbbbbbbbbbb1", models.MarketTotal, models.SideOver, 224.5)
	p.ETDate = yesterday
	p.EventID = "evt-pending"
	status, err := g.picks.PersistPick(p)
	require.NoError(t, err)
	require.Equal(t, store.PersistLogged, status)

	// Graded pick outside the window.
	old := timeutil.ETDateOf(time.Now().AddDate(0, 0, -10))
	gradedHistoryPick(t, g, "bbbbbbbbbbb2", old, models.SportNBA, true)

	snap, err := g.Audit(3)
	require.NoError(t, err)
	assert.Zero(t, snap.PicksAudited)
}

func TestAuditDefaultWindow(t *testing.T) {
	g, _, _, _ := auditHarness(t)
	snap, err := g.Audit(0)
	require.NoError(t, err)
	assert.Equal(t, 14, snap.DaysBack)
}
