package app

import (
	"context"
	"time"

	"github.com/sharpedge/pickengine/internal/config"
	"github.com/sharpedge/pickengine/internal/grader"
	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/store"
	"github.com/sharpedge/pickengine/internal/timeutil"
)

// StorageHealth reports the resolved volume and store state.
func (e *Engine) StorageHealth() store.StorageHealth {
	return store.Health(e.volume, e.picks, e.weights, e.archive != nil, time.Now())
}

// GraderStatus is the operator-facing grader report.
type GraderStatus struct {
	Available         bool       `json:"available"`
	PredictionsLogged int        `json:"predictions_logged"`
	PendingToGrade    int        `json:"pending_to_grade"`
	GradedToday       int        `json:"graded_today"`
	StoragePath       string     `json:"storage_path"`
	LastTrainRunAt    *time.Time `json:"last_train_run_at,omitempty"`
	TrainingHealth    string     `json:"training_health"`
}

// GraderStatus summarizes grading progress for today and yesterday.
func (e *Engine) GraderStatus() GraderStatus {
	now := time.Now()
	st := GraderStatus{
		Available:         true,
		PredictionsLogged: e.picks.LineCount(),
		StoragePath:       e.volume.BaseDir,
		TrainingHealth:    e.weights.Health(now, e.picks.HasGrades()),
	}
	if training, err := e.weights.Status(); err == nil {
		st.LastTrainRunAt = training.LastRunAt
	}

	for _, etDate := range []string{timeutil.YesterdayET(now), timeutil.TodayET(now)} {
		picks, err := e.picks.LoadPredictions(etDate, "")
		if err != nil {
			st.Available = false
			continue
		}
		for _, p := range picks {
			if p.Graded() {
				if etDate == timeutil.TodayET(now) {
					st.GradedToday++
				}
			} else {
				st.PendingToGrade++
			}
		}
	}
	return st
}

// GraderDryRun previews grading without writes.
func (e *Engine) GraderDryRun(ctx context.Context, etDate, stage string) (grader.DryRunReport, error) {
	if etDate == "" {
		etDate = timeutil.YesterdayET(time.Now())
	}
	return e.grader.DryRun(ctx, etDate, stage)
}

// GradeDate settles one ET date now, outside the scheduled window.
func (e *Engine) GradeDate(ctx context.Context, etDate string) (grader.Summary, error) {
	if etDate == "" {
		etDate = timeutil.YesterdayET(time.Now())
	}
	return e.grader.GradePending(ctx, etDate)
}

// Audit runs the performance audit over the trailing window now.
func (e *Engine) Audit(daysBack int) (store.AuditSnapshot, error) {
	return e.grader.Audit(daysBack)
}

// DebugTime reports every clock the pipeline reasons about.
func (e *Engine) DebugTime() timeutil.Snapshot {
	return timeutil.Snap(time.Now())
}

// IntegrationHealth rolls up the registry for one sport.
func (e *Engine) IntegrationHealth(sport models.Sport) config.HealthReport {
	return e.registry.Health(sport)
}
