package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sharpedge/pickengine/internal/models"
)

// GroupPerformance is one (sport, market) row in the audit snapshot.
type GroupPerformance struct {
	Sport       string  `json:"sport"`
	Market      string  `json:"market"`
	Graded      int     `json:"graded"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Pushes      int     `json:"pushes"`
	Voids       int     `json:"voids"`
	HitRate     float64 `json:"hit_rate"`
	MAE         float64 `json:"mae"`
	Bias        float64 `json:"bias"`
	Correlation float64 `json:"score_result_correlation"`
}

// AuditSnapshot is the immutable daily record written after a weight-tuning
// pass. One file per ET date; a rerun overwrites the same day atomically.
type AuditSnapshot struct {
	ETDate       string              `json:"et_date"`
	GeneratedAt  time.Time           `json:"generated_at"`
	DaysBack     int                 `json:"days_back"`
	PicksAudited int                 `json:"picks_audited"`
	Groups       []GroupPerformance  `json:"groups"`
	WeightDiffs  []models.WeightDiff `json:"weight_diffs"`
	Notes        []string            `json:"notes,omitempty"`
}

// AuditWriter places snapshots under audit_logs/ on the volume.
type AuditWriter struct {
	dir string
}

func NewAuditWriter(baseDir string) *AuditWriter {
	return &AuditWriter{dir: filepath.Join(baseDir, auditDir)}
}

// Write persists the snapshot as audit_YYYY-MM-DD.json.
func (aw *AuditWriter) Write(snap AuditSnapshot) error {
	if snap.ETDate == "" {
		return fmt.Errorf("audit snapshot missing et_date")
	}
	path := filepath.Join(aw.dir, "audit_"+snap.ETDate+".json")
	return writeAtomic(path, snap)
}

// ReadLatest returns the most recent snapshot, or nil when none exists. The
// date embedded in the filename sorts lexically, so the glob tail is newest.
func (aw *AuditWriter) ReadLatest() (*AuditSnapshot, error) {
	matches, err := filepath.Glob(filepath.Join(aw.dir, "audit_*.json"))
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	sort.Strings(matches)
	raw, err := os.ReadFile(matches[len(matches)-1])
	if err != nil {
		return nil, fmt.Errorf("read audit snapshot: %w", err)
	}
	var snap AuditSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse audit snapshot: %w", err)
	}
	return &snap, nil
}
