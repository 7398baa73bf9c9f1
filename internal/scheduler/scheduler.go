package scheduler

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/sharpedge/pickengine/internal/telemetry"
	"github.com/sharpedge/pickengine/internal/timeutil"
)

// DefaultMisfireGrace is how far past the trigger a late tick may still
// fire the job. Beyond it the firing is skipped, not made up.
const DefaultMisfireGrace = 600 * time.Second

// Handler is one job body. The context ends when the scheduler stops or
// the job's grace window elapses, whichever comes first.
type Handler func(ctx context.Context) error

// Job is one registered entry.
type Job struct {
	Name         string
	Schedule     *Schedule
	Handler      Handler
	MisfireGrace time.Duration
	Enabled      bool

	mu        sync.Mutex
	running   bool
	lastFired time.Time // trigger instant, not wall time; dedupes within grace
	lastRunAt time.Time
	lastErr   error
}

// JobStatus is the per-job row of the status operation.
type JobStatus struct {
	Name       string `json:"name"`
	Trigger    string `json:"trigger"`
	NextRunET  string `json:"next_run_et"`
	Registered bool   `json:"registered"`
	Enabled    bool   `json:"enabled"`
	Running    bool   `json:"running"`
	LastError  string `json:"last_error,omitempty"`
}

// overrideFile is the optional YAML shape for enabling/disabling or
// re-timing jobs without a rebuild. Unknown names are rejected.
type overrideFile struct {
	Jobs []struct {
		Name     string `yaml:"name"`
		Schedule string `yaml:"schedule"`
		Enabled  *bool  `yaml:"enabled"`
	} `yaml:"jobs"`
}

// Scheduler fires the job table on ET wall-clock minutes.
type Scheduler struct {
	mu   sync.Mutex
	jobs []*Job
}

func New() *Scheduler {
	return &Scheduler{}
}

// Register adds a job with the default misfire grace. Registration order is
// preserved in status output.
func (s *Scheduler) Register(name, cronExpr string, h Handler) error {
	sched, err := ParseSchedule(cronExpr)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Name == name {
			return fmt.Errorf("register %s: duplicate job name", name)
		}
	}
	s.jobs = append(s.jobs, &Job{
		Name:         name,
		Schedule:     sched,
		Handler:      h,
		MisfireGrace: DefaultMisfireGrace,
		Enabled:      true,
	})
	return nil
}

// ApplyOverrides loads the optional YAML job override file.
func (s *Scheduler) ApplyOverrides(path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scheduler config: %w", err)
	}
	var of overrideFile
	if err := yaml.Unmarshal(raw, &of); err != nil {
		return fmt.Errorf("parse scheduler config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range of.Jobs {
		job := s.findLocked(o.Name)
		if job == nil {
			return fmt.Errorf("scheduler config: unknown job %q", o.Name)
		}
		if o.Schedule != "" {
			sched, err := ParseSchedule(o.Schedule)
			if err != nil {
				return fmt.Errorf("scheduler config %s: %w", o.Name, err)
			}
			job.Schedule = sched
		}
		if o.Enabled != nil {
			job.Enabled = *o.Enabled
		}
	}
	return nil
}

func (s *Scheduler) findLocked(name string) *Job {
	for _, j := range s.jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}

// Run ticks until the context ends. Each tick evaluates every job against
// the current ET minute with misfire grace, so a sleepy host that wakes a
// few minutes late still fires the morning table.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// tick fires every enabled job whose most recent trigger instant is within
// grace and has not fired yet.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	nowET := now.In(timeutil.ETLocation())

	s.mu.Lock()
	jobs := append([]*Job(nil), s.jobs...)
	s.mu.Unlock()

	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		trigger, ok := lastTriggerWithin(job.Schedule, nowET, job.MisfireGrace)
		if !ok {
			continue
		}
		s.fire(ctx, job, trigger)
	}
}

// lastTriggerWithin finds the most recent trigger instant in
// [now-grace, now], walking back minute by minute.
func lastTriggerWithin(sched *Schedule, nowET time.Time, grace time.Duration) (time.Time, bool) {
	minute := nowET.Truncate(time.Minute)
	for t := minute; nowET.Sub(t) <= grace; t = t.Add(-time.Minute) {
		if sched.Matches(t) {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *Scheduler) fire(ctx context.Context, job *Job, trigger time.Time) {
	job.mu.Lock()
	if job.lastFired.Equal(trigger) {
		job.mu.Unlock()
		return
	}
	if job.running {
		job.mu.Unlock()
		telemetry.JobOverlapsDropped.WithLabelValues(job.Name).Inc()
		log.Warn().Str("job", job.Name).Time("trigger", trigger).
			Msg("job still running, firing dropped")
		return
	}
	job.running = true
	job.lastFired = trigger
	job.mu.Unlock()

	runID := uuid.NewString()
	go func() {
		// The grace window doubles as the run budget: a hung handler is
		// cancelled rather than holding its slot and dropping every
		// subsequent firing as an overlap.
		runCtx, cancel := context.WithTimeout(ctx, job.MisfireGrace)
		defer cancel()

		started := time.Now()
		outcome := "ok"
		defer func() {
			if r := recover(); r != nil {
				outcome = "panic"
				log.Error().Str("job", job.Name).Str("run_id", runID).
					Interface("panic", r).Bytes("stack", debug.Stack()).
					Msg("job panicked")
			}
			telemetry.JobRuns.WithLabelValues(job.Name, outcome).Inc()
			job.mu.Lock()
			job.running = false
			job.lastRunAt = started
			job.mu.Unlock()
		}()

		log.Info().Str("job", job.Name).Str("run_id", runID).
			Str("trigger_et", trigger.Format("2006-01-02 15:04")).Msg("job firing")
		if err := job.Handler(runCtx); err != nil {
			outcome = "error"
			job.mu.Lock()
			job.lastErr = err
			job.mu.Unlock()
			log.Error().Err(err).Str("job", job.Name).Str("run_id", runID).
				Dur("elapsed", time.Since(started)).Msg("job failed")
			return
		}
		job.mu.Lock()
		job.lastErr = nil
		job.mu.Unlock()
		log.Info().Str("job", job.Name).Str("run_id", runID).
			Dur("elapsed", time.Since(started)).Msg("job done")
	}()
}

// Status reports every registered job with its next ET firing.
func (s *Scheduler) Status(now time.Time) []JobStatus {
	nowET := now.In(timeutil.ETLocation())

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		job.mu.Lock()
		st := JobStatus{
			Name:       job.Name,
			Trigger:    job.Schedule.String(),
			Registered: true,
			Enabled:    job.Enabled,
			Running:    job.running,
		}
		if job.lastErr != nil {
			st.LastError = job.lastErr.Error()
		}
		job.mu.Unlock()
		if next := job.Schedule.Next(nowET); !next.IsZero() {
			st.NextRunET = next.Format("2006-01-02 3:04 PM") + " ET"
		}
		out = append(out, st)
	}
	return out
}
