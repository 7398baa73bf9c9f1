// Package slate builds the de-duplicated, today-only candidate set the
// scoring pipeline draws from. The ET day gate here is the single most
// important correctness invariant upstream of scoring: market APIs return
// multi-day forward windows, and without the gate tomorrow's games get
// scored and emitted as ghost picks.
package slate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/cache"
	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/telemetry"
	"github.com/sharpedge/pickengine/internal/timeutil"
	"github.com/sharpedge/pickengine/internal/upstream"
)

// Telemetry is the per-build counter snapshot, also exported to Prometheus.
type Telemetry struct {
	EventsBefore       int `json:"events_before"`
	EventsAfter        int `json:"events_after"`
	DroppedOutOfWindow int `json:"dropped_out_of_window"`
	DroppedMissingTime int `json:"dropped_missing_time"`
	CandidatesBefore   int `json:"candidates_before"`
	CandidatesAfter    int `json:"candidates_after"`
}

// Slate is the build output. Total upstream failure yields an empty slate,
// not an error; failed components are listed for response metadata.
type Slate struct {
	Sport            models.Sport                   `json:"sport"`
	ETDate           string                         `json:"et_date"`
	Candidates       []models.Candidate             `json:"candidates"`
	Events           map[string]models.Event        `json:"-"`
	Intel            map[string]upstream.EventIntel `json:"-"`
	Odds             *upstream.OddsSnapshot         `json:"-"`
	Telemetry        Telemetry                      `json:"telemetry"`
	FailedComponents []string                       `json:"failed_components"`
}

// Builder fans out to the market data source and assembles slates.
type Builder struct {
	market upstream.MarketDataSource
	intel  upstream.IntelSource
	guard  *upstream.Guard
	snaps  *cache.Snapshots

	// batchDeadline bounds the whole build; per-call timeouts live in the
	// guard so a hung props call cannot block game-market picks.
	batchDeadline time.Duration
}

// NewBuilder wires a builder. intel may be nil (OPTIONAL integration).
func NewBuilder(market upstream.MarketDataSource, intel upstream.IntelSource, guard *upstream.Guard, snaps *cache.Snapshots, batchDeadline time.Duration) *Builder {
	if batchDeadline <= 0 {
		batchDeadline = 15 * time.Second
	}
	return &Builder{market: market, intel: intel, guard: guard, snaps: snaps, batchDeadline: batchDeadline}
}

// BuildSlate fetches events, props, odds and intel in parallel, applies the
// ET day gate and dedups candidates by fingerprint. Partial success is
// normal: each failed component is recorded and the slate is built from
// whatever arrived.
func (b *Builder) BuildSlate(ctx context.Context, sport models.Sport, etDate string) *Slate {
	ctx, cancel := context.WithTimeout(ctx, b.batchDeadline)
	defer cancel()

	out := &Slate{
		Sport:            sport,
		ETDate:           etDate,
		Candidates:       []models.Candidate{},
		Events:           map[string]models.Event{},
		Intel:            map[string]upstream.EventIntel{},
		FailedComponents: []string{},
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		events []models.Event
		props  []models.Candidate
		odds   *upstream.OddsSnapshot
	)
	fail := func(component string, err error) {
		mu.Lock()
		out.FailedComponents = append(out.FailedComponents, component)
		mu.Unlock()
		log.Warn().Err(err).Str("component", component).Str("sport", string(sport)).Msg("slate component failed")
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		err := b.guard.Do(ctx, func(ctx context.Context) error {
			ev, err := b.market.FetchEvents(ctx, sport)
			if err != nil {
				return err
			}
			mu.Lock()
			events = ev
			mu.Unlock()
			return nil
		})
		if err != nil {
			fail("events", err)
		}
	}()
	go func() {
		defer wg.Done()
		err := b.guard.Do(ctx, func(ctx context.Context) error {
			pr, err := b.market.FetchProps(ctx, sport)
			if err != nil {
				return err
			}
			mu.Lock()
			props = pr
			mu.Unlock()
			return nil
		})
		if err != nil {
			fail("props", err)
		}
	}()
	go func() {
		defer wg.Done()
		snap, err := b.fetchOdds(ctx, sport)
		if err != nil {
			fail("odds_snapshot", err)
			return
		}
		mu.Lock()
		odds = snap
		mu.Unlock()
	}()
	wg.Wait()

	admitted := b.applyDayGate(out, sport, etDate, events)
	out.Odds = odds

	candidates := gameCandidates(admitted, odds)
	candidates = append(candidates, propCandidates(admitted, props)...)
	out.Telemetry.CandidatesBefore = len(candidates)
	out.Candidates = dedupe(candidates)
	out.Telemetry.CandidatesAfter = len(out.Candidates)

	b.prefetchIntel(ctx, out, sport)

	log.Info().
		Str("sport", string(sport)).Str("et_date", etDate).
		Int("events_before", out.Telemetry.EventsBefore).
		Int("events_after", out.Telemetry.EventsAfter).
		Int("candidates", len(out.Candidates)).
		Strs("failed_components", out.FailedComponents).
		Msg("slate built")
	return out
}

// applyDayGate admits events starting inside [00:00 ET etDate, 00:00 ET
// etDate+1) and counts every rejection reason.
func (b *Builder) applyDayGate(out *Slate, sport models.Sport, etDate string, events []models.Event) map[string]models.Event {
	admitted := make(map[string]models.Event)
	for _, ev := range events {
		out.Telemetry.EventsBefore++
		telemetry.SlateEventsBefore.WithLabelValues(string(sport)).Inc()
		switch {
		case ev.StartTime.IsZero():
			out.Telemetry.DroppedMissingTime++
			telemetry.SlateDroppedMissingTime.WithLabelValues(string(sport)).Inc()
		case !timeutil.InETDay(ev.StartTime, etDate):
			out.Telemetry.DroppedOutOfWindow++
			telemetry.SlateDroppedOutOfWindow.WithLabelValues(string(sport)).Inc()
		default:
			out.Telemetry.EventsAfter++
			telemetry.SlateEventsAfter.WithLabelValues(string(sport)).Inc()
			admitted[ev.EventID] = ev
			out.Events[ev.EventID] = ev
		}
	}
	return admitted
}

// fetchOdds serves the snapshot from cache when fresh; odds power the line
// variance signal and game-market candidates.
func (b *Builder) fetchOdds(ctx context.Context, sport models.Sport) (*upstream.OddsSnapshot, error) {
	key := "odds:" + string(sport)
	if b.snaps != nil {
		var cached upstream.OddsSnapshot
		if b.snaps.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}
	var snap *upstream.OddsSnapshot
	err := b.guard.Do(ctx, func(ctx context.Context) error {
		s, err := b.market.GetOddsSnapshot(ctx, sport)
		if err != nil {
			return err
		}
		snap = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	if b.snaps != nil && snap != nil {
		b.snaps.Set(ctx, key, snap)
	}
	return snap, nil
}

// prefetchIntel pulls external intelligence for the whole slate in one call.
// Per-candidate fetches are a performance regression; scoring only ever
// reads the cached map.
func (b *Builder) prefetchIntel(ctx context.Context, out *Slate, sport models.Sport) {
	if b.intel == nil || len(out.Events) == 0 {
		return
	}
	ids := make([]string, 0, len(out.Events))
	for id := range out.Events {
		ids = append(ids, id)
	}
	intel, err := b.intel.FetchEventIntel(ctx, sport, ids)
	if err != nil {
		log.Warn().Err(err).Msg("intel prefetch failed; serp boosts zero for this slate")
		out.FailedComponents = append(out.FailedComponents, "intel")
		return
	}
	out.Intel = intel
}

// gameCandidates joins the odds snapshot to admitted events.
func gameCandidates(admitted map[string]models.Event, odds *upstream.OddsSnapshot) []models.Candidate {
	if odds == nil {
		return nil
	}
	var out []models.Candidate
	for _, line := range odds.Lines {
		ev, ok := admitted[line.EventID]
		if !ok || !line.Market.IsGameMarket() {
			continue
		}
		oddsVal := line.OddsAmerican
		out = append(out, models.Candidate{
			Event:        ev,
			Market:       line.Market,
			Side:         line.Side,
			Line:         line.Line,
			OddsAmerican: &oddsVal,
			Book:         line.Book,
		})
	}
	return out
}

// propCandidates keeps player props whose event passed the gate.
func propCandidates(admitted map[string]models.Event, props []models.Candidate) []models.Candidate {
	var out []models.Candidate
	for _, c := range props {
		ev, ok := admitted[c.Event.EventID]
		if !ok || !c.Market.IsPlayerProp() {
			continue
		}
		c.Event = ev
		out = append(out, c)
	}
	return out
}

// dedupe collapses candidates sharing a fingerprint, retaining the one from
// the higher-preference book. Output order is deterministic: first
// appearance wins position.
func dedupe(candidates []models.Candidate) []models.Candidate {
	byID := make(map[string]int)
	var out []models.Candidate
	for _, c := range candidates {
		id := c.PickID()
		if idx, seen := byID[id]; seen {
			if models.BookRank(c.Book) < models.BookRank(out[idx].Book) {
				out[idx] = c
			}
			continue
		}
		byID[id] = len(out)
		out = append(out, c)
	}
	return out
}
