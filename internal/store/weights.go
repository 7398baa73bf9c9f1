package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/models"
)

// Default per-group signal weights, installed the first time a (sport, market)
// group is trained. Sharp leads by design; the learner moves these later.
func DefaultSignalWeights() models.SignalWeights {
	return models.SignalWeights{
		"sharp_signal":   0.30,
		"line_value":     0.20,
		"ai_model":       0.20,
		"esoteric_blend": 0.15,
		"jarvis_rs":      0.15,
	}
}

// TrainingStatus is persisted alongside the weights and surfaced through the
// grader status operation.
type TrainingStatus struct {
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastOutcome   string     `json:"last_outcome,omitempty"`
	PicksAudited  int        `json:"picks_audited"`
	GroupsTouched int        `json:"groups_touched"`
}

const trainingStatusFile = "training_status.json"

// Training health states, derived from the status file age.
const (
	TrainingHealthy  = "HEALTHY"
	TrainingStale    = "STALE"
	TrainingNeverRan = "NEVER_RAN"
)

// staleAfter is how long the learner may go silent, with graded picks
// waiting, before status degrades.
const staleAfter = 24 * time.Hour

// WeightStore persists the learned weight book and training status with
// write-temp-then-rename so readers never observe a torn file.
type WeightStore struct {
	dir string
}

func NewWeightStore(baseDir string) *WeightStore {
	return &WeightStore{dir: filepath.Join(baseDir, graderDir)}
}

func (ws *WeightStore) weightsPath() string {
	return filepath.Join(ws.dir, weightsFile)
}

func (ws *WeightStore) statusPath() string {
	return filepath.Join(ws.dir, trainingStatusFile)
}

// Load returns the persisted weight book, or an empty book when none exists
// yet. A corrupt file is an error, not a silent reset.
func (ws *WeightStore) Load() (models.WeightBook, error) {
	raw, err := os.ReadFile(ws.weightsPath())
	if os.IsNotExist(err) {
		return models.WeightBook{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var wb models.WeightBook
	if err := json.Unmarshal(raw, &wb); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}
	return wb, nil
}

// Save atomically replaces the weight book.
func (ws *WeightStore) Save(wb models.WeightBook) error {
	return writeAtomic(ws.weightsPath(), wb)
}

// RecordTraining atomically replaces the training status file.
func (ws *WeightStore) RecordTraining(status TrainingStatus) error {
	return writeAtomic(ws.statusPath(), status)
}

// Status reads the training status; a missing file means the learner has
// never completed a run.
func (ws *WeightStore) Status() (TrainingStatus, error) {
	raw, err := os.ReadFile(ws.statusPath())
	if os.IsNotExist(err) {
		return TrainingStatus{}, nil
	}
	if err != nil {
		return TrainingStatus{}, fmt.Errorf("read training status: %w", err)
	}
	var st TrainingStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return TrainingStatus{}, fmt.Errorf("parse training status: %w", err)
	}
	return st, nil
}

// Health classifies the learner state from the status file age. With no
// graded picks on disk there is nothing to learn from, so an idle learner
// is healthy; NEVER_RAN and STALE apply only once grades exist.
func (ws *WeightStore) Health(now time.Time, gradedAvailable bool) string {
	if !gradedAvailable {
		return TrainingHealthy
	}
	st, err := ws.Status()
	if err != nil {
		log.Warn().Err(err).Msg("training status unreadable")
		return TrainingNeverRan
	}
	if st.LastRunAt == nil {
		return TrainingNeverRan
	}
	if now.Sub(*st.LastRunAt) > staleAfter {
		return TrainingStale
	}
	return TrainingHealthy
}

// writeAtomic marshals v and renames a temp file into place. The rename is
// atomic on the same filesystem, so readers see old or new, never partial.
func writeAtomic(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
