// Package store owns the durable state: the append-only predictions log,
// the grade sidecar, the learned weights file and the daily audit
// snapshots. Everything lives under the resolved volume; writes are
// serialized per file and each JSONL line is a self-contained record.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/telemetry"
)

// PersistStatus is the outcome of one pick write. Duplicate is a normal
// idempotency outcome, not an error.
type PersistStatus string

const (
	PersistLogged    PersistStatus = "logged"
	PersistDuplicate PersistStatus = "duplicate"
	PersistError     PersistStatus = "error"
)

// Relative layout under the volume.
const (
	graderDir       = "grader"
	predictionsFile = "predictions.jsonl"
	gradesFile      = "grades.jsonl"
	weightsFile     = "weights.json"
	auditDir        = "audit_logs"
)

// gradeEntry is one sidecar line: a logical update to a persisted pick.
// Readers reconcile by (pick_id, et_date), last write wins; a recurring
// pick_id graded on one day never touches another day's instance.
type gradeEntry struct {
	PickID       string         `json:"pick_id"`
	ETDate       string         `json:"et_date"`
	Result       models.Result  `json:"result"`
	ActualValue  *float64       `json:"actual_value,omitempty"`
	GradedAt     time.Time      `json:"graded_at"`
	ClosingLine  *float64       `json:"closing_line,omitempty"`
	BeatCLV      *bool          `json:"beat_clv,omitempty"`
	ProcessGrade string         `json:"process_grade,omitempty"`
}

// PickStore is the append-only pick log. The scoring pipeline writes picks,
// the grader appends grades; nothing else writes.
type PickStore struct {
	baseDir string

	mu sync.Mutex
	// seen indexes (et_date -> pick_id) for duplicate rejection without
	// rescanning the log on every write.
	seen map[string]map[string]bool
}

// Open loads the store rooted at the resolved volume, scanning the existing
// log once to rebuild the dedup index.
func Open(baseDir string) (*PickStore, error) {
	s := &PickStore{baseDir: baseDir, seen: make(map[string]map[string]bool)}
	for _, dir := range []string{filepath.Join(baseDir, graderDir), filepath.Join(baseDir, auditDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := s.scanExisting(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PickStore) predictionsPath() string {
	return filepath.Join(s.baseDir, graderDir, predictionsFile)
}

func (s *PickStore) gradesPath() string {
	return filepath.Join(s.baseDir, graderDir, gradesFile)
}

func (s *PickStore) scanExisting() error {
	f, err := os.Open(s.predictionsPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open predictions log: %w", err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	for scanner.Scan() {
		var p models.Pick
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			log.Warn().Err(err).Msg("skipping unreadable predictions line")
			continue
		}
		s.index(p.ETDate, p.PickID)
		count++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan predictions log: %w", err)
	}
	log.Info().Int("picks", count).Str("path", s.predictionsPath()).Msg("pick store loaded")
	return nil
}

func (s *PickStore) index(etDate, pickID string) {
	byID, ok := s.seen[etDate]
	if !ok {
		byID = make(map[string]bool)
		s.seen[etDate] = byID
	}
	byID[pickID] = true
}

// PersistPick validates and appends one pick. A pick_id already logged for
// the same ET date returns duplicate without touching the file.
func (s *PickStore) PersistPick(p *models.Pick) (PersistStatus, error) {
	if err := p.Validate(); err != nil {
		telemetry.ValidationFailures.WithLabelValues("persist").Inc()
		telemetry.PicksPersisted.WithLabelValues(string(PersistError)).Inc()
		return PersistError, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[p.ETDate][p.PickID] {
		telemetry.PicksPersisted.WithLabelValues(string(PersistDuplicate)).Inc()
		return PersistDuplicate, nil
	}

	if err := appendLine(s.predictionsPath(), p); err != nil {
		telemetry.PicksPersisted.WithLabelValues(string(PersistError)).Inc()
		return PersistError, err
	}
	s.index(p.ETDate, p.PickID)
	telemetry.PicksPersisted.WithLabelValues(string(PersistLogged)).Inc()
	return PersistLogged, nil
}

// MarkGraded appends a grading entry for a pick. The predictions log is
// never rewritten; grades reconcile on load.
func (s *PickStore) MarkGraded(pickID, etDate string, result models.Result, actualValue *float64, gradedAt time.Time, closingLine *float64, beatCLV *bool, processGrade string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLine(s.gradesPath(), gradeEntry{
		PickID:       pickID,
		ETDate:       etDate,
		Result:       result,
		ActualValue:  actualValue,
		GradedAt:     gradedAt.UTC(),
		ClosingLine:  closingLine,
		BeatCLV:      beatCLV,
		ProcessGrade: processGrade,
	})
}

// LoadPredictions reads picks for one ET date (or all when empty),
// optionally filtered by sport, with grading fields reconciled from the
// sidecar, last write wins.
func (s *PickStore) LoadPredictions(etDate string, sport models.Sport) ([]*models.Pick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	picks, err := s.readPicks(etDate, sport)
	if err != nil {
		return nil, err
	}
	grades, err := s.readGrades()
	if err != nil {
		return nil, err
	}
	for _, p := range picks {
		g, ok := grades[gradeKey{p.PickID, p.ETDate}]
		if !ok {
			continue
		}
		result := g.Result
		p.Result = &result
		p.ActualValue = g.ActualValue
		gradedAt := g.GradedAt
		p.GradedAt = &gradedAt
		p.ClosingLine = g.ClosingLine
		p.BeatCLV = g.BeatCLV
		p.ProcessGrade = g.ProcessGrade
	}
	return picks, nil
}

func (s *PickStore) readPicks(etDate string, sport models.Sport) ([]*models.Pick, error) {
	f, err := os.Open(s.predictionsPath())
	if os.IsNotExist(err) {
		return []*models.Pick{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open predictions log: %w", err)
	}
	defer f.Close()

	var picks []*models.Pick
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	for scanner.Scan() {
		var p models.Pick
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			log.Warn().Err(err).Msg("skipping unreadable predictions line")
			continue
		}
		if etDate != "" && p.ETDate != etDate {
			continue
		}
		if sport != "" && p.Sport != sport {
			continue
		}
		picks = append(picks, &p)
	}
	if picks == nil {
		picks = []*models.Pick{}
	}
	return picks, scanner.Err()
}

type gradeKey struct {
	pickID string
	etDate string
}

func (s *PickStore) readGrades() (map[gradeKey]gradeEntry, error) {
	out := make(map[gradeKey]gradeEntry)
	f, err := os.Open(s.gradesPath())
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open grades log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var g gradeEntry
		if err := json.Unmarshal(scanner.Bytes(), &g); err != nil {
			log.Warn().Err(err).Msg("skipping unreadable grade line")
			continue
		}
		out[gradeKey{g.PickID, g.ETDate}] = g // last write wins
	}
	return out, scanner.Err()
}

// HasGrades reports whether any grade has ever been appended. The learner
// health states only apply once there is something to learn from.
func (s *PickStore) HasGrades() bool {
	info, err := os.Stat(s.gradesPath())
	return err == nil && info.Size() > 0
}

// LineCount reports the predictions log length for health output.
func (s *PickStore) LineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, byID := range s.seen {
		n += len(byID)
	}
	return n
}

// Paths returns the absolute storage paths for health output.
func (s *PickStore) Paths() map[string]string {
	return map[string]string{
		"predictions": s.predictionsPath(),
		"grades":      s.gradesPath(),
		"weights":     filepath.Join(s.baseDir, graderDir, weightsFile),
		"audit_logs":  filepath.Join(s.baseDir, auditDir),
	}
}

// appendLine marshals a record and appends it as one LF-terminated line.
// The single-line write keeps the log atomic at line granularity.
func appendLine(path string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}
