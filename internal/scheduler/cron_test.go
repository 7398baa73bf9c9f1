package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpedge/pickengine/internal/timeutil"
)

func mustParse(t *testing.T, expr string) *Schedule {
	t.Helper()
	s, err := ParseSchedule(expr)
	require.NoError(t, err)
	return s
}

func etTime(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, timeutil.ETLocation())
}

func TestParseScheduleErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"0 5 * *",
		"0 5 * * * *",
		"60 5 * * *",
		"0 24 * * *",
		"0 5 0 * *",
		"0 5 * 13 *",
		"0 5 * * 7",
		"x 5 * * *",
		"0 5 * * 3-1",
		"*/0 * * * *",
	} {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, "expr %q", expr)
	}
}

func TestMatchesDailyTrigger(t *testing.T) {
	s := mustParse(t, "0 5 * * *")
	assert.True(t, s.Matches(etTime(2026, time.January, 29, 5, 0)))
	assert.False(t, s.Matches(etTime(2026, time.January, 29, 5, 1)))
	assert.False(t, s.Matches(etTime(2026, time.January, 29, 6, 0)))
}

func TestMatchesWeekendOnly(t *testing.T) {
	s := mustParse(t, "0 12 * * 0,6")
	assert.True(t, s.Matches(etTime(2026, time.January, 31, 12, 0)), "Saturday")
	assert.True(t, s.Matches(etTime(2026, time.February, 1, 12, 0)), "Sunday")
	assert.False(t, s.Matches(etTime(2026, time.January, 29, 12, 0)), "Thursday")
}

func TestMatchesStepAndRange(t *testing.T) {
	step := mustParse(t, "*/15 * * * *")
	for _, m := range []int{0, 15, 30, 45} {
		assert.True(t, step.Matches(etTime(2026, time.January, 29, 9, m)))
	}
	assert.False(t, step.Matches(etTime(2026, time.January, 29, 9, 20)))

	rng := mustParse(t, "0 10-14 * * *")
	assert.True(t, rng.Matches(etTime(2026, time.January, 29, 12, 0)))
	assert.False(t, rng.Matches(etTime(2026, time.January, 29, 15, 0)))
}

func TestMatchesDomAndDowBothRestrict(t *testing.T) {
	// Fires only when the 1st falls on a Monday.
	s := mustParse(t, "0 12 1 * 1")
	assert.True(t, s.Matches(etTime(2026, time.June, 1, 12, 0)), "2026-06-01 is a Monday")
	assert.False(t, s.Matches(etTime(2026, time.February, 1, 12, 0)), "2026-02-01 is a Sunday")
	assert.False(t, s.Matches(etTime(2026, time.June, 8, 12, 0)), "a Monday that is not the 1st")
}

func TestNextIsStrictlyAfter(t *testing.T) {
	s := mustParse(t, "0 18 * * *")
	from := etTime(2026, time.January, 29, 10, 30)
	assert.Equal(t, etTime(2026, time.January, 29, 18, 0), s.Next(from))

	atTrigger := etTime(2026, time.January, 29, 18, 0)
	assert.Equal(t, etTime(2026, time.January, 30, 18, 0), s.Next(atTrigger))
}

func TestNextCrossesDSTBoundary(t *testing.T) {
	s := mustParse(t, "0 5 * * *")
	// The night of 2026-03-08 loses an hour; the trigger still lands on the
	// 5 AM ET wall-clock minute.
	next := s.Next(etTime(2026, time.March, 8, 1, 0))
	assert.Equal(t, 5, next.Hour())
	assert.Equal(t, 8, next.Day())
}

func TestScheduleStringRoundTrip(t *testing.T) {
	assert.Equal(t, "30 5 * * *", mustParse(t, "30 5 * * *").String())
}
