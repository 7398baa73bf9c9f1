package store

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpedge/pickengine/internal/models"
)

func storedPick(id, etDate string) *models.Pick {
	return &models.Pick{
		PickID:  id,
		Sport:   models.SportNBA,
		EventID: "evt-1",
		Market:  models.MarketTotal,
		Side:    models.SideOver,
		Line:    224.5,
		Book:    "draftkings",

		AIScore: 7.1, ResearchScore: 6.8, EsotericScore: 6.2, JarvisScore: 4.5,
		FinalScore: 7.2,
		Tier:       models.TierEdgeLean,

		AIReasons: []string{"model"}, ResearchReasons: []string{},
		EsotericReasons: []string{}, JarvisReasons: []string{},
		JarvisTriggersHit: []string{}, JarvisFailReasons: []string{},
		JarvisInputsUsed: map[string]float64{}, TitaniumQualifiedEngines: []string{},

		CreatedAt:        time.Date(2026, 1, 29, 18, 0, 0, 0, time.UTC),
		EventStartTimeET: "9:10 PM ET",
		ETDate:           etDate,
	}
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	p := storedPick("abcdef012345", "2026-01-29")
	status, err := s.PersistPick(p)
	require.NoError(t, err)
	assert.Equal(t, PersistLogged, status)

	got, err := s.LoadPredictions("2026-01-29", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.PickID, got[0].PickID)
	assert.Equal(t, p.FinalScore, got[0].FinalScore)
	assert.Nil(t, got[0].Result)
	assert.Equal(t, 1, s.LineCount())
}

func TestPersistDuplicateIsIdempotent(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	p := storedPick("abcdef012345", "2026-01-29")
	_, err = s.PersistPick(p)
	require.NoError(t, err)

	status, err := s.PersistPick(storedPick("abcdef012345", "2026-01-29"))
	require.NoError(t, err)
	assert.Equal(t, PersistDuplicate, status)

	got, err := s.LoadPredictions("2026-01-29", "")
	require.NoError(t, err)
	assert.Len(t, got, 1, "duplicate must not append a second line")
}

func TestSamePickIDDifferentDayIsNotDuplicate(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.PersistPick(storedPick("abcdef012345", "2026-01-29"))
	require.NoError(t, err)
	status, err := s.PersistPick(storedPick("abcdef012345", "2026-01-30"))
	require.NoError(t, err)
	assert.Equal(t, PersistLogged, status)
}

func TestPersistRejectsInvalidPick(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	p := storedPick("abcdef012345", "2026-01-29")
	p.Book = ""
	status, err := s.PersistPick(p)
	assert.Equal(t, PersistError, status)
	assert.Error(t, err)
	assert.Zero(t, s.LineCount())
}

func TestDedupIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.PersistPick(storedPick("abcdef012345", "2026-01-29"))
	require.NoError(t, err)

	reopened, err := Open(dir)
	require.NoError(t, err)
	status, err := reopened.PersistPick(storedPick("abcdef012345", "2026-01-29"))
	require.NoError(t, err)
	assert.Equal(t, PersistDuplicate, status)
	assert.Equal(t, 1, reopened.LineCount())
}

func TestMarkGradedReconcilesLastWriteWins(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.PersistPick(storedPick("abcdef012345", "2026-01-29"))
	require.NoError(t, err)

	actual := 231.0
	closing := 226.5
	beat := true
	gradedAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkGraded("abcdef012345", "2026-01-29", models.ResultLoss, &actual, gradedAt, nil, nil, "C"))
	require.NoError(t, s.MarkGraded("abcdef012345", "2026-01-29", models.ResultWin, &actual, gradedAt.Add(time.Hour), &closing, &beat, "C"))

	got, err := s.LoadPredictions("2026-01-29", "")
	require.NoError(t, err)
	require.Len(t, got, 1)

	p := got[0]
	require.NotNil(t, p.Result)
	assert.Equal(t, models.ResultWin, *p.Result, "later grade line wins")
	require.NotNil(t, p.ActualValue)
	assert.Equal(t, actual, *p.ActualValue)
	require.NotNil(t, p.ClosingLine)
	assert.Equal(t, closing, *p.ClosingLine)
	require.NotNil(t, p.BeatCLV)
	assert.True(t, *p.BeatCLV)
	assert.Equal(t, "C", p.ProcessGrade)
}

func TestGradeScopedToItsDayAcrossAllDaysLoad(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.PersistPick(storedPick("abcdef012345", "2026-01-28"))
	require.NoError(t, err)
	_, err = s.PersistPick(storedPick("abcdef012345", "2026-01-29"))
	require.NoError(t, err)

	actual := 223.0
	require.NoError(t, s.MarkGraded("abcdef012345", "2026-01-28", models.ResultWin, &actual, time.Date(2026, 1, 29, 10, 0, 0, 0, time.UTC), nil, nil, "C"))

	got, err := s.LoadPredictions("", "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		if p.ETDate == "2026-01-28" {
			require.NotNil(t, p.Result)
			assert.Equal(t, models.ResultWin, *p.Result)
		} else {
			assert.Nil(t, p.Result, "a recurring pick_id graded yesterday stays pending today")
		}
	}
}

func TestGradeNeverRewritesPredictionsLog(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	_, err = s.PersistPick(storedPick("abcdef012345", "2026-01-29"))
	require.NoError(t, err)
	before, err := os.ReadFile(s.Paths()["predictions"])
	require.NoError(t, err)

	require.NoError(t, s.MarkGraded("abcdef012345", "2026-01-29", models.ResultWin, nil, time.Now(), nil, nil, "C"))
	after, err := os.ReadFile(s.Paths()["predictions"])
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadFiltersBySport(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	nba := storedPick("abcdef012345", "2026-01-29")
	nhl := storedPick("abcdef678901", "2026-01-29")
	nhl.Sport = models.SportNHL
	nhl.EventID = "evt-2"
	_, err = s.PersistPick(nba)
	require.NoError(t, err)
	_, err = s.PersistPick(nhl)
	require.NoError(t, err)

	got, err := s.LoadPredictions("2026-01-29", models.SportNHL)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SportNHL, got[0].Sport)
}

func TestCorruptLineIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.PersistPick(storedPick("abcdef012345", "2026-01-29"))
	require.NoError(t, err)

	f, err := os.OpenFile(s.Paths()["predictions"], os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := s.LoadPredictions("2026-01-29", "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAppendedLinesAreLFTerminated(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	_, err = s.PersistPick(storedPick("abcdef012345", "2026-01-29"))
	require.NoError(t, err)
	_, err = s.PersistPick(storedPick("abcdef678901", "2026-01-29"))
	require.NoError(t, err)

	raw, err := os.ReadFile(s.Paths()["predictions"])
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "\n"))
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))
}
