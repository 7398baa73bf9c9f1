package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/timeutil"
)

// Job handlers for the daily ET table. Each is self-contained: errors are
// reported to the scheduler, never propagated across jobs.

// jobGradeAndTune settles yesterday and runs the weight-tuning audit.
func (e *Engine) jobGradeAndTune(ctx context.Context) error {
	etDate := timeutil.YesterdayET(time.Now())
	sum, err := e.grader.GradePending(ctx, etDate)
	if err != nil {
		return err
	}
	if _, err := e.grader.Audit(14); err != nil {
		return err
	}
	log.Info().Int("graded", sum.Graded).Str("et_date", etDate).Msg("grade and tune complete")
	return nil
}

// jobSmokeTest probes storage and integrations; failures are the job error.
func (e *Engine) jobSmokeTest(ctx context.Context) error {
	health := e.StorageHealth()
	if !health.Volume.Writable {
		return fmt.Errorf("smoke test: volume %s not writable", health.Volume.BaseDir)
	}
	for _, sport := range allSports {
		report := e.registry.Health(sport)
		if !report.OK {
			return fmt.Errorf("smoke test: %s integrations unhealthy: %v", sport, report.Errors)
		}
	}
	return nil
}

// jobWindowGrading sweeps the last three days for picks that settled late
// (West Coast finals, suspended games).
func (e *Engine) jobWindowGrading(ctx context.Context) error {
	now := time.Now()
	for i := 1; i <= 3; i++ {
		etDate := timeutil.ETDateOf(now.AddDate(0, 0, -i))
		if _, err := e.grader.GradePending(ctx, etDate); err != nil {
			return err
		}
	}
	return nil
}

// jobTotalsCalibration re-runs the audit over a short window so the totals
// bias correction tracks the current week, not the whole trailing fortnight.
func (e *Engine) jobTotalsCalibration(ctx context.Context) error {
	_, err := e.grader.Audit(7)
	return err
}

// jobDailyAudit is the full cross-sport audit over yesterday only.
func (e *Engine) jobDailyAudit(ctx context.Context) error {
	_, err := e.grader.Audit(1)
	return err
}

// jobModelTrain retunes weights from the long window. The audit pass is the
// training step; a larger model refit does not exist in this deployment.
func (e *Engine) jobModelTrain(ctx context.Context) error {
	_, err := e.grader.Audit(30)
	return err
}

// jobTrainingVerify asserts the 07:00 training actually ran.
func (e *Engine) jobTrainingVerify(ctx context.Context) error {
	st, err := e.weights.Status()
	if err != nil {
		return err
	}
	if st.LastRunAt == nil {
		return fmt.Errorf("training verify: no training run recorded")
	}
	if age := time.Since(*st.LastRunAt); age > 30*time.Minute {
		return fmt.Errorf("training verify: last run %s ago", age.Round(time.Second))
	}
	return nil
}

// jobWarmSlates pre-builds today's slates so the first consumer request
// after a game window opens hits warm caches.
func (e *Engine) jobWarmSlates(ctx context.Context) error {
	etDate := timeutil.TodayET(time.Now())
	for _, sport := range allSports {
		sl := e.builder.BuildSlate(ctx, sport, etDate)
		log.Info().Str("sport", string(sport)).
			Int("candidates", len(sl.Candidates)).Msg("slate warmed")
	}
	return nil
}
