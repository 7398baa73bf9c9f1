package app

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/engine"
	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/scoring"
	"github.com/sharpedge/pickengine/internal/slate"
	"github.com/sharpedge/pickengine/internal/store"
	"github.com/sharpedge/pickengine/internal/telemetry"
	"github.com/sharpedge/pickengine/internal/timeutil"
	"github.com/sharpedge/pickengine/internal/upstream"
)

// Options tune one best-bets request.
type Options struct {
	// TopN caps each class of the response; <=0 returns everything that
	// survived the pipeline.
	TopN int
	// ETDate overrides today; used by tests and backfills.
	ETDate string
}

// PickGroup is one class of the response. Picks is never nil.
type PickGroup struct {
	Count int            `json:"count"`
	Picks []*models.Pick `json:"picks"`
}

// Meta is the response metadata block. All timestamps are ET display
// strings; UTC never reaches consumers.
type Meta struct {
	RequestID           string          `json:"request_id"`
	Sport               models.Sport    `json:"sport"`
	ETDate              string          `json:"et_date"`
	GeneratedAtET       string          `json:"generated_at_et"`
	Telemetry           slate.Telemetry `json:"telemetry"`
	FailedComponents    []string        `json:"failed_components"`
	TimedOutComponents  []string        `json:"timed_out_components"`
	Health              string          `json:"health"`
	PersistedNew        int             `json:"persisted_new"`
	PersistedDuplicates int             `json:"persisted_duplicates"`
}

// BestBetsResponse is the full envelope. It is always well-formed, even when
// every upstream failed and both groups are empty.
type BestBetsResponse struct {
	Props PickGroup `json:"props"`
	Games PickGroup `json:"games"`
	Meta  Meta      `json:"meta"`
}

// GenerateBestBets runs the full pipeline for one sport under the request
// budget: slate build, parallel scoring, postprocess, persist, split.
func (e *Engine) GenerateBestBets(ctx context.Context, sport models.Sport, opts Options) *BestBetsResponse {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestBudget)
	defer cancel()

	now := time.Now()
	etDate := opts.ETDate
	if etDate == "" {
		etDate = timeutil.TodayET(now)
	}
	resp := &BestBetsResponse{
		Props: PickGroup{Picks: []*models.Pick{}},
		Games: PickGroup{Picks: []*models.Pick{}},
		Meta: Meta{
			RequestID:          uuid.NewString(),
			Sport:              sport,
			ETDate:             etDate,
			GeneratedAtET:      timeutil.DisplayET(now),
			FailedComponents:   []string{},
			TimedOutComponents: []string{},
		},
	}
	health := e.registry.Health(sport)
	resp.Meta.Health = healthWord(health.OK, health.Degraded)

	sl := e.builder.BuildSlate(ctx, sport, etDate)
	resp.Meta.Telemetry = sl.Telemetry
	resp.Meta.FailedComponents = sl.FailedComponents

	if len(sl.Candidates) == 0 {
		log.Info().Str("sport", string(sport)).Str("et_date", etDate).Msg("empty slate, empty response")
		return resp
	}

	wb, err := e.weights.Load()
	if err != nil {
		log.Warn().Err(err).Msg("weight book unreadable, engine defaults in effect")
		wb = models.WeightBook{}
	}
	splitsByEvent := e.fetchSplits(ctx, sl)
	calibration := e.totalsCalibration(sport)

	picks := e.scoreSlate(ctx, resp, sl, wb, splitsByEvent, calibration, now)
	picks = scoring.Postprocess(picks)

	for _, p := range picks {
		status, err := e.picks.PersistPick(p)
		switch status {
		case store.PersistLogged:
			resp.Meta.PersistedNew++
		case store.PersistDuplicate:
			resp.Meta.PersistedDuplicates++
		default:
			log.Error().Err(err).Str("pick_id", p.PickID).Msg("pick persist failed")
		}
	}

	props, games := scoring.SplitByClass(picks, opts.TopN)
	resp.Props = PickGroup{Count: len(props), Picks: props}
	resp.Games = PickGroup{Count: len(games), Picks: games}

	log.Info().Str("request_id", resp.Meta.RequestID).Str("sport", string(sport)).
		Int("props", len(props)).Int("games", len(games)).
		Int("new", resp.Meta.PersistedNew).Msg("best bets generated")
	return resp
}

// scoreSlate fans candidates across a worker pool. Scoring is deterministic
// per candidate so only completion order varies; the postprocess sort
// restores a stable output order.
func (e *Engine) scoreSlate(ctx context.Context, resp *BestBetsResponse, sl *slate.Slate,
	wb models.WeightBook, splitsByEvent map[string]*upstream.Splits,
	calibration float64, now time.Time) []*models.Pick {

	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	jobs := make(chan models.Candidate)
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		picks []*models.Pick
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				p := e.scorer.ScoreCandidate(c, e.assembleContext(ctx, c, sl, wb, splitsByEvent, calibration, now))
				if p == nil {
					continue
				}
				mu.Lock()
				picks = append(picks, p)
				mu.Unlock()
			}
		}()
	}

	timedOut := false
feed:
	for _, c := range sl.Candidates {
		select {
		case jobs <- c:
		case <-ctx.Done():
			timedOut = true
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if timedOut {
		resp.Meta.TimedOutComponents = append(resp.Meta.TimedOutComponents, "scoring")
		telemetry.RequestTimedOutComponents.WithLabelValues("scoring").Inc()
	}
	return picks
}

// assembleContext builds the per-candidate snapshot the engines read.
func (e *Engine) assembleContext(ctx context.Context, c models.Candidate, sl *slate.Slate,
	wb models.WeightBook, splitsByEvent map[string]*upstream.Splits, calibration float64, now time.Time) *engine.Context {

	ec := &engine.Context{
		Now:               now,
		GameStatus:        e.live.Status(c.Event.EventID),
		Odds:              sl.Odds,
		OddsSourceAPI:     "market_data",
		ResearchWeights:   wb.Get(c.Event.Sport, c.Market),
		TotalsCalibration: calibration,
	}
	if sp, ok := splitsByEvent[c.Event.EventID]; ok && sp != nil {
		ec.Splits = sp
		ec.SplitsStatus = engine.StatusSuccess
		ec.SplitsSourceAPI = "splits"
	} else {
		ec.SplitsStatus = engine.StatusNoData
	}
	if intel, ok := sl.Intel[c.Event.EventID]; ok {
		in := intel
		ec.Intel = &in
	}
	ec.Spread, ec.Total = consensusLines(sl.Odds, c.Event.EventID)

	if e.features != nil {
		f, err := e.features.Features(ctx, c)
		if err != nil {
			log.Debug().Err(err).Str("event", c.Event.EventID).Msg("feature assembly failed, heuristic fallback")
		} else {
			ec.Features = f
		}
	}
	return ec
}

// fetchSplits loads ticket/money splits once per slate event. Splits are
// DEGRADED_OK: any failure leaves the event without splits and the sharp
// signal reports NONE.
func (e *Engine) fetchSplits(ctx context.Context, sl *slate.Slate) map[string]*upstream.Splits {
	out := make(map[string]*upstream.Splits, len(sl.Events))
	if e.splits == nil {
		return out
	}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for id := range sl.Events {
		wg.Add(1)
		go func(eventID string) {
			defer wg.Done()
			var sp *upstream.Splits
			err := e.splitsGuard.Do(ctx, func(callCtx context.Context) error {
				s, err := e.splits.FetchSplits(callCtx, eventID)
				if err != nil {
					return err
				}
				sp = s
				return nil
			})
			if err != nil {
				return
			}
			mu.Lock()
			out[eventID] = sp
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}

// consensusLines derives the event's consensus spread and total from the
// snapshot: median absolute spread (signed negative, favorite convention)
// and median total.
func consensusLines(odds *upstream.OddsSnapshot, eventID string) (spread, total *float64) {
	if odds == nil {
		return nil, nil
	}
	var spreads, totals []float64
	for _, l := range odds.Lines {
		if l.EventID != eventID {
			continue
		}
		switch l.Market {
		case models.MarketSpread:
			spreads = append(spreads, math.Abs(l.Line))
		case models.MarketTotal:
			totals = append(totals, l.Line)
		}
	}
	if m, ok := median(spreads); ok {
		v := -m
		spread = &v
	}
	if m, ok := median(totals); ok {
		v := m
		total = &v
	}
	return spread, total
}

func median(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return (vals[mid-1] + vals[mid]) / 2, true
}

// totalsCalibration reads the latest audit snapshot and converts the sport's
// TOTAL bias into a small signed correction. The formula clamps it to ±0.75.
func (e *Engine) totalsCalibration(sport models.Sport) float64 {
	snap, err := e.audits.ReadLatest()
	if err != nil || snap == nil {
		return 0
	}
	for _, g := range snap.Groups {
		if g.Sport == string(sport) && g.Market == string(models.MarketTotal) {
			// Positive bias means actual totals run above the line; lean the
			// correction against the recent miss direction.
			return -g.Bias * 0.05
		}
	}
	return 0
}

func healthWord(ok, degraded bool) string {
	switch {
	case !ok:
		return "unhealthy"
	case degraded:
		return "degraded"
	default:
		return "ok"
	}
}
