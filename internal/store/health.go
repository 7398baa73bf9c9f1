package store

import (
	"os"
	"time"

	"github.com/sharpedge/pickengine/internal/config"
)

// StorageHealth is the operator-facing storage report. Every field is
// populated from live filesystem state at call time.
type StorageHealth struct {
	Volume         config.VolumeInfo `json:"volume"`
	Paths          map[string]string `json:"paths"`
	PicksLogged    int               `json:"picks_logged"`
	WeightsPresent bool              `json:"weights_present"`
	TrainingHealth string            `json:"training_health"`
	ArchiveEnabled bool              `json:"archive_enabled"`
	CheckedAt      time.Time         `json:"checked_at"`
}

// Health assembles the storage report for the operator surface.
func Health(vol config.VolumeInfo, picks *PickStore, weights *WeightStore, archiveEnabled bool, now time.Time) StorageHealth {
	_, err := os.Stat(weights.weightsPath())
	return StorageHealth{
		Volume:         vol,
		Paths:          picks.Paths(),
		PicksLogged:    picks.LineCount(),
		WeightsPresent: err == nil,
		TrainingHealth: weights.Health(now, picks.HasGrades()),
		ArchiveEnabled: archiveEnabled,
		CheckedAt:      now.UTC(),
	}
}
