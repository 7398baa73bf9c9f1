package grader

import (
	"time"

	"github.com/sharpedge/pickengine/internal/store"
)

// Status is the operator-facing grader report.
type Status struct {
	Health   string               `json:"health"`
	Training store.TrainingStatus `json:"training"`
}

// Status reports learner health from the persisted training record.
func (g *Grader) Status(now time.Time) (Status, error) {
	training, err := g.weights.Status()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Health:   g.weights.Health(now, g.picks.HasGrades()),
		Training: training,
	}, nil
}
