package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterJob(n *atomic.Int32) Handler {
	return func(ctx context.Context) error {
		n.Add(1)
		return nil
	}
}

func waitForCount(t *testing.T, n *atomic.Int32, want int32) {
	t.Helper()
	require.Eventually(t, func() bool { return n.Load() == want },
		2*time.Second, 10*time.Millisecond)
}

func TestTickFiresOnTriggerMinute(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Register("morning", "0 5 * * *", counterJob(&runs)))

	s.tick(context.Background(), etTime(2026, time.January, 29, 5, 0).Add(10*time.Second))
	waitForCount(t, &runs, 1)

	s.tick(context.Background(), etTime(2026, time.January, 29, 4, 59))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "off-trigger tick must not fire")
}

func TestMisfireWithinGraceFires(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Register("morning", "0 5 * * *", counterJob(&runs)))

	// Host woke up 8 minutes late: inside the 600s grace.
	s.tick(context.Background(), etTime(2026, time.January, 29, 5, 8))
	waitForCount(t, &runs, 1)
}

func TestMisfireBeyondGraceSkips(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Register("morning", "0 5 * * *", counterJob(&runs)))

	s.tick(context.Background(), etTime(2026, time.January, 29, 5, 11))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, runs.Load(), "a firing more than grace late is skipped, not made up")
}

func TestSameTriggerFiresOnce(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Register("morning", "0 5 * * *", counterJob(&runs)))

	base := etTime(2026, time.January, 29, 5, 0)
	s.tick(context.Background(), base.Add(10*time.Second))
	waitForCount(t, &runs, 1)
	s.tick(context.Background(), base.Add(40*time.Second))
	s.tick(context.Background(), base.Add(3*time.Minute))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "one trigger instant, one run")
}

func TestOverlappingRunIsDropped(t *testing.T) {
	s := New()
	block := make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, s.Register("slow", "* * * * *", func(ctx context.Context) error {
		runs.Add(1)
		<-block
		return nil
	}))

	s.tick(context.Background(), etTime(2026, time.January, 29, 5, 0))
	waitForCount(t, &runs, 1)

	// Next minute's trigger arrives while the first run still holds the job.
	s.tick(context.Background(), etTime(2026, time.January, 29, 5, 1))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(block)
	require.Eventually(t, func() bool {
		for _, st := range s.Status(time.Now()) {
			if st.Name == "slow" {
				return !st.Running
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHungJobIsCancelledAtGrace(t *testing.T) {
	s := New()
	require.NoError(t, s.Register("hung", "0 5 * * *", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	s.mu.Lock()
	s.jobs[0].MisfireGrace = 50 * time.Millisecond
	s.mu.Unlock()

	s.tick(context.Background(), etTime(2026, time.January, 29, 5, 0))
	require.Eventually(t, func() bool {
		st := s.Status(time.Now())[0]
		return !st.Running && st.LastError == context.DeadlineExceeded.Error()
	}, 2*time.Second, 10*time.Millisecond, "a blocked handler must release its slot at the grace window")
}

func TestPanicIsContained(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Register("flaky", "* * * * *", func(ctx context.Context) error {
		runs.Add(1)
		panic("boom")
	}))

	s.tick(context.Background(), etTime(2026, time.January, 29, 5, 0))
	waitForCount(t, &runs, 1)

	// The job recovers and fires again on the next trigger.
	s.tick(context.Background(), etTime(2026, time.January, 29, 5, 1))
	waitForCount(t, &runs, 2)
}

func TestJobErrorSurfacesInStatus(t *testing.T) {
	s := New()
	require.NoError(t, s.Register("broken", "0 5 * * *", func(ctx context.Context) error {
		return errors.New("volume not writable")
	}))

	s.tick(context.Background(), etTime(2026, time.January, 29, 5, 0))
	require.Eventually(t, func() bool {
		return s.Status(time.Now())[0].LastError == "volume not writable"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegisterRejectsDuplicatesAndBadCron(t *testing.T) {
	s := New()
	require.NoError(t, s.Register("a", "0 5 * * *", counterJob(&atomic.Int32{})))
	assert.Error(t, s.Register("a", "0 6 * * *", counterJob(&atomic.Int32{})))
	assert.Error(t, s.Register("b", "not cron", counterJob(&atomic.Int32{})))
}

func TestApplyOverrides(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Register("morning", "0 5 * * *", counterJob(&runs)))

	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - name: morning
    schedule: "30 6 * * *"
    enabled: false
`), 0o644))
	require.NoError(t, s.ApplyOverrides(path))

	st := s.Status(etTime(2026, time.January, 29, 4, 0))[0]
	assert.False(t, st.Enabled)
	assert.Equal(t, "30 6 * * *", st.Trigger)

	s.tick(context.Background(), etTime(2026, time.January, 29, 6, 30))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, runs.Load(), "disabled jobs never fire")
}

func TestApplyOverridesUnknownJob(t *testing.T) {
	s := New()
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - name: ghost\n"), 0o644))
	assert.Error(t, s.ApplyOverrides(path))
}

func TestStatusNextRunFormat(t *testing.T) {
	s := New()
	require.NoError(t, s.Register("morning", "0 5 * * *", counterJob(&atomic.Int32{})))

	st := s.Status(etTime(2026, time.January, 29, 4, 0))[0]
	assert.Equal(t, "2026-01-29 5:00 AM ET", st.NextRunET)
	assert.True(t, st.Registered)
	assert.True(t, st.Enabled)
}
