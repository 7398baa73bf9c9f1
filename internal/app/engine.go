// Package app wires the pipeline together and exports the operator surface:
// best-bets generation, grading, health and status operations, and the daily
// job table. HTTP routing is external; everything here is plain Go calls.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/cache"
	"github.com/sharpedge/pickengine/internal/config"
	"github.com/sharpedge/pickengine/internal/engine"
	"github.com/sharpedge/pickengine/internal/grader"
	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/scheduler"
	"github.com/sharpedge/pickengine/internal/scoring"
	"github.com/sharpedge/pickengine/internal/slate"
	"github.com/sharpedge/pickengine/internal/store"
	"github.com/sharpedge/pickengine/internal/upstream"
)

// Sources are the provider adapters the engine consumes. Intel and Features
// may be nil; they are optional integrations.
type Sources struct {
	Market   upstream.MarketDataSource
	Results  upstream.ResultsSource
	Splits   upstream.SplitsSource
	Intel    upstream.IntelSource
	Features FeatureSource
}

// FeatureSource assembles AI model inputs per candidate. A nil source or a
// nil return puts the AI engine in heuristic-fallback mode.
type FeatureSource interface {
	Features(ctx context.Context, c models.Candidate) (*engine.Features, error)
}

// Engine is the assembled application.
type Engine struct {
	cfg      *config.Settings
	registry *config.Registry
	volume   config.VolumeInfo

	picks   *store.PickStore
	weights *store.WeightStore
	audits  *store.AuditWriter
	archive *store.Archive

	builder *slate.Builder
	scorer  *scoring.Scorer
	grader  *grader.Grader
	sched   *scheduler.Scheduler
	live    *upstream.LiveFeed

	splits      upstream.SplitsSource
	splitsGuard *upstream.Guard
	features    FeatureSource
}

// New assembles the engine. The volume must already be resolved; storage
// problems surface here, before the scheduler starts.
func New(ctx context.Context, cfg *config.Settings, registry *config.Registry, vol config.VolumeInfo, src Sources) (*Engine, error) {
	picks, err := store.Open(vol.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("open pick store: %w", err)
	}
	weights := store.NewWeightStore(vol.BaseDir)
	audits := store.NewAuditWriter(vol.BaseDir)

	archive, err := store.OpenArchive(ctx, cfg.ArchiveDSN)
	if err != nil {
		// The JSONL log is the source of truth; a dead mirror is degraded, not fatal.
		log.Warn().Err(err).Msg("archive unavailable, continuing without it")
		archive = nil
	}

	marketGuard := upstream.NewGuard("market_data", cfg.UpstreamCallTimeout, 10, registry)
	resultsGuard := upstream.NewGuard("results", cfg.UpstreamCallTimeout, 10, registry)
	splitsGuard := upstream.NewGuard("splits", cfg.UpstreamCallTimeout, 5, registry)

	snaps := cache.NewSnapshots(cfg.RedisAddr, cfg.CacheTTL)
	builder := slate.NewBuilder(src.Market, src.Intel, marketGuard, snaps, cfg.RequestBudget)

	e := &Engine{
		cfg:      cfg,
		registry: registry,
		volume:   vol,
		picks:    picks,
		weights:  weights,
		audits:   audits,
		archive:  archive,
		builder:  builder,
		scorer:   scoring.NewScorer(engine.NewAIEngine(engine.DefaultEnsemble()), cfg.ExpertConsensusShadow),
		grader: grader.New(picks, weights, audits, src.Results, src.Market,
			resultsGuard, archive),
		sched:       scheduler.New(),
		live:        upstream.NewLiveFeed(cfg.LiveFeedURL),
		splits:      src.Splits,
		splitsGuard: splitsGuard,
		features:    src.Features,
	}
	if err := e.registerJobs(); err != nil {
		return nil, err
	}
	if err := e.sched.ApplyOverrides(cfg.SchedulerConfigPath); err != nil {
		return nil, err
	}
	return e, nil
}

// Serve runs the scheduler, live feed and metrics listener until the
// context ends.
func (e *Engine) Serve(ctx context.Context) {
	go e.live.Run(ctx)
	if e.cfg.MetricsAddr != "" {
		go serveMetrics(ctx, e.cfg.MetricsAddr)
	}
	e.sched.Run(ctx)
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn().Err(err).Msg("metrics server stopped")
	}
}

// Grader exposes grading operations for the CLI.
func (e *Engine) Grader() *grader.Grader { return e.grader }

// Close releases held resources.
func (e *Engine) Close() error {
	return e.archive.Close()
}

// allSports is the slate iteration order for scheduled warms and audits.
var allSports = models.AllSports

// registerJobs installs the daily ET job table.
func (e *Engine) registerJobs() error {
	table := []struct {
		name string
		cron string
		h    scheduler.Handler
	}{
		{"grade_and_tune", "0 5 * * *", e.jobGradeAndTune},
		{"smoke_test", "30 5 * * *", e.jobSmokeTest},
		{"jsonl_grading", "0 6 * * *", e.jobWindowGrading},
		{"trap_evaluation", "15 6 * * *", e.jobTotalsCalibration},
		{"daily_audit", "30 6 * * *", e.jobDailyAudit},
		{"team_model_train", "0 7 * * *", e.jobModelTrain},
		{"training_verify", "30 7 * * *", e.jobTrainingVerify},
		{"props_fetch_morning", "0 10 * * *", e.jobWarmSlates},
		{"props_fetch_noon", "0 12 * * 0,6", e.jobWarmSlates},
		{"props_fetch_afternoon", "0 14 * * 0,6", e.jobWarmSlates},
		{"props_fetch_evening", "0 18 * * *", e.jobWarmSlates},
	}
	for _, row := range table {
		if err := e.sched.Register(row.name, row.cron, row.h); err != nil {
			return err
		}
	}
	return nil
}

// SchedulerStatus returns the per-job status rows.
func (e *Engine) SchedulerStatus(now time.Time) []scheduler.JobStatus {
	return e.sched.Status(now)
}
