// Package grader settles persisted picks against final results, reconciles
// closing-line value and runs the nightly performance audit that tunes the
// learned signal weights.
package grader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/store"
	"github.com/sharpedge/pickengine/internal/telemetry"
	"github.com/sharpedge/pickengine/internal/upstream"
)

// Unresolved reason codes, surfaced in summaries and metrics. Unresolved
// picks stay pending and are retried on the next pass.
const (
	ReasonNotFinal         = "NOT_FINAL"
	ReasonResultMissing    = "RESULT_UNAVAILABLE"
	ReasonStatMissing      = "STAT_UNAVAILABLE"
	ReasonUpstreamError    = "UPSTREAM_ERROR"
	ReasonUnknownMoneySide = "UNKNOWN_SIDE"
)

// Summary is the outcome of one grading pass.
type Summary struct {
	ETDate     string         `json:"et_date"`
	Graded     int            `json:"graded"`
	Failed     int            `json:"failed"`
	Unresolved int            `json:"unresolved"`
	Skipped    int            `json:"skipped"`
	ByReason   map[string]int `json:"by_reason,omitempty"`
}

// Grader owns settlement. It reads the pick store, asks the results source
// for finals, and appends grades; it never rewrites prediction lines.
type Grader struct {
	picks   *store.PickStore
	weights *store.WeightStore
	audits  *store.AuditWriter
	results upstream.ResultsSource
	market  upstream.MarketDataSource
	guard   *upstream.Guard
	archive *store.Archive
}

// New wires a grader. The archive may be nil.
func New(picks *store.PickStore, weights *store.WeightStore, audits *store.AuditWriter,
	results upstream.ResultsSource, market upstream.MarketDataSource,
	guard *upstream.Guard, archive *store.Archive) *Grader {
	return &Grader{
		picks:   picks,
		weights: weights,
		audits:  audits,
		results: results,
		market:  market,
		guard:   guard,
		archive: archive,
	}
}

// GradePending settles every ungraded pick for one ET date. Per-pick
// failures never abort the pass; each pick lands in exactly one bucket.
func (g *Grader) GradePending(ctx context.Context, etDate string) (Summary, error) {
	sum := Summary{ETDate: etDate, ByReason: make(map[string]int)}

	picks, err := g.picks.LoadPredictions(etDate, "")
	if err != nil {
		return sum, fmt.Errorf("load predictions for %s: %w", etDate, err)
	}

	finals := make(map[string]*finalLookup)
	closing := make(map[models.Sport]*upstream.OddsSnapshot)

	for _, p := range picks {
		if p.Graded() {
			sum.Skipped++
			continue
		}

		fl := g.finalFor(ctx, finals, p.EventID)
		if fl.err != nil {
			sum.Unresolved++
			sum.ByReason[ReasonUpstreamError]++
			telemetry.GradeUnresolved.WithLabelValues(string(p.Sport), ReasonUpstreamError).Inc()
			continue
		}
		if fl.score == nil {
			sum.Unresolved++
			sum.ByReason[ReasonNotFinal]++
			telemetry.GradeUnresolved.WithLabelValues(string(p.Sport), ReasonNotFinal).Inc()
			continue
		}

		result, actual, reason := g.settle(ctx, p, fl.score)
		if reason != "" {
			sum.Unresolved++
			sum.ByReason[reason]++
			telemetry.GradeUnresolved.WithLabelValues(string(p.Sport), reason).Inc()
			continue
		}

		closingLine, beatCLV := g.closingLineValue(ctx, closing, p)
		now := time.Now()
		if err := g.picks.MarkGraded(p.PickID, p.ETDate, result, actual, now,
			closingLine, beatCLV, processGrade(p)); err != nil {
			sum.Failed++
			log.Error().Err(err).Str("pick_id", p.PickID).Msg("grade write failed")
			continue
		}
		sum.Graded++
		telemetry.GradeOutcomes.WithLabelValues(string(p.Sport), string(result)).Inc()

		if g.archive != nil {
			r := result
			p.Result = &r
			p.ActualValue = actual
			gradedAt := now
			p.GradedAt = &gradedAt
			p.ClosingLine = closingLine
			p.BeatCLV = beatCLV
			_ = g.archive.StoreGraded(ctx, p) // logged inside, never blocks
		}
	}

	log.Info().Str("et_date", etDate).
		Int("graded", sum.Graded).Int("unresolved", sum.Unresolved).
		Int("failed", sum.Failed).Int("skipped", sum.Skipped).
		Msg("grading pass complete")
	return sum, nil
}

// finalLookup memoizes one event's final so multi-pick events cost one call.
type finalLookup struct {
	score *upstream.FinalScore
	err   error
}

func (g *Grader) finalFor(ctx context.Context, cache map[string]*finalLookup, eventID string) *finalLookup {
	if fl, ok := cache[eventID]; ok {
		return fl
	}
	fl := &finalLookup{}
	err := g.guard.Do(ctx, func(callCtx context.Context) error {
		fs, err := g.results.FetchFinalScore(callCtx, eventID)
		if err != nil {
			return err
		}
		fl.score = fs
		return nil
	})
	if err != nil && !errors.Is(err, upstream.ErrNotFound) {
		fl.err = err
	}
	cache[eventID] = fl
	return fl
}

// settle resolves one pick against a final. An empty reason means the result
// is authoritative.
func (g *Grader) settle(ctx context.Context, p *models.Pick, fs *upstream.FinalScore) (models.Result, *float64, string) {
	if fs.Status == upstream.FinalStatusNoContest {
		return models.ResultVoid, nil, ""
	}

	total := float64(fs.Home + fs.Away)
	switch {
	case p.Market == models.MarketMoneyline || p.Market == models.MarketSharp:
		// A tie settles moneyline as VOID, not PUSH.
		if fs.Status == upstream.FinalStatusTie || fs.Home == fs.Away {
			return models.ResultVoid, nil, ""
		}
		pickedHome := strings.EqualFold(p.Side, p.Home)
		pickedAway := strings.EqualFold(p.Side, p.Away)
		if !pickedHome && !pickedAway {
			return "", nil, ReasonUnknownMoneySide
		}
		if (pickedHome && fs.Home > fs.Away) || (pickedAway && fs.Away > fs.Home) {
			return models.ResultWin, nil, ""
		}
		return models.ResultLoss, nil, ""

	case p.Market == models.MarketSpread:
		pickedScore, oppScore := float64(fs.Away), float64(fs.Home)
		if strings.EqualFold(p.Side, p.Home) {
			pickedScore, oppScore = float64(fs.Home), float64(fs.Away)
		} else if !strings.EqualFold(p.Side, p.Away) {
			return "", nil, ReasonUnknownMoneySide
		}
		margin := pickedScore + p.Line - oppScore
		actual := pickedScore - oppScore
		switch {
		case margin > 0:
			return models.ResultWin, &actual, ""
		case margin < 0:
			return models.ResultLoss, &actual, ""
		default:
			return models.ResultPush, &actual, ""
		}

	case p.Market == models.MarketTotal:
		return gradeOverUnder(p.Side, total, p.Line), &total, ""

	case p.Market.IsPlayerProp():
		var stat float64
		err := g.guard.Do(ctx, func(callCtx context.Context) error {
			v, err := g.results.FetchPlayerStat(callCtx, p.PlayerID, p.EventID, p.Market.PropStat())
			if err != nil {
				return err
			}
			stat = v
			return nil
		})
		if errors.Is(err, upstream.ErrNotFound) {
			return "", nil, ReasonStatMissing
		}
		if err != nil {
			return "", nil, ReasonUpstreamError
		}
		return gradeOverUnder(p.Side, stat, p.Line), &stat, ""
	}

	return "", nil, ReasonResultMissing
}

// gradeOverUnder settles any over/under market against an actual value.
func gradeOverUnder(side string, actual, line float64) models.Result {
	if actual == line {
		return models.ResultPush
	}
	over := actual > line
	if strings.EqualFold(side, models.SideOver) == over {
		return models.ResultWin
	}
	return models.ResultLoss
}

// closingLineValue compares the persisted line against the latest snapshot.
// Both values are nil when no closing line is available; CLV is advisory and
// never blocks grading.
func (g *Grader) closingLineValue(ctx context.Context, cache map[models.Sport]*upstream.OddsSnapshot, p *models.Pick) (*float64, *bool) {
	if p.Market == models.MarketMoneyline || p.Market == models.MarketSharp {
		return nil, nil
	}
	snap, ok := cache[p.Sport]
	if !ok {
		err := g.guard.Do(ctx, func(callCtx context.Context) error {
			s, err := g.market.GetOddsSnapshot(callCtx, p.Sport)
			if err != nil {
				return err
			}
			snap = s
			return nil
		})
		if err != nil {
			log.Debug().Err(err).Str("sport", string(p.Sport)).Msg("closing snapshot unavailable")
		}
		cache[p.Sport] = snap
	}
	if snap == nil {
		return nil, nil
	}
	lines := snap.LinesFor(p.EventID, p.Market, p.Side)
	if len(lines) == 0 {
		return nil, nil
	}
	closing := lines[0].Line
	for _, l := range lines[1:] {
		if models.BookRank(l.Book) < models.BookRank(lines[0].Book) {
			closing = l.Line
		}
	}

	beat := beatClosing(p, closing)
	return &closing, &beat
}

// beatClosing reports whether the persisted entry line was better than the
// close. Overs want a lower entry than close; unders and spreads want the
// market to have moved against the number they locked.
func beatClosing(p *models.Pick, closing float64) bool {
	if p.Market == models.MarketSpread {
		return p.Line > closing
	}
	if strings.EqualFold(p.Side, models.SideUnder) {
		return p.Line > closing
	}
	return p.Line < closing
}

// processGrade judges decision quality from pre-game evidence only. The
// outcome never changes it; a TITANIUM_SMASH loss is still an A process.
func processGrade(p *models.Pick) string {
	switch {
	case p.TitaniumTriggered:
		return "A"
	case p.Tier == models.TierGoldStar:
		return "B"
	case p.Tier == models.TierEdgeLean && p.FinalScore >= 7.0:
		return "C"
	default:
		return "D"
	}
}
