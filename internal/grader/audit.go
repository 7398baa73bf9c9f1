package grader

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/store"
	"github.com/sharpedge/pickengine/internal/timeutil"
)

// learnStep is the per-signal movement per audit cycle. MaxWeightStep in the
// models package caps the cumulative move if steps ever compound.
const learnStep = 0.01

// minGroupSample is the fewest graded picks a (sport, market) group needs
// before its weights move. Below it the group is reported but untouched.
const minGroupSample = 20

// Signal names tied to the engine score each one learns from.
var signalEngines = map[string]func(*models.Pick) float64{
	"sharp_signal":   func(p *models.Pick) float64 { return p.ResearchScore },
	"line_value":     func(p *models.Pick) float64 { return p.ResearchScore },
	"ai_model":       func(p *models.Pick) float64 { return p.AIScore },
	"esoteric_blend": func(p *models.Pick) float64 { return p.EsotericScore },
	"jarvis_rs":      func(p *models.Pick) float64 { return p.JarvisScore },
}

// Audit evaluates graded picks over the trailing window, adjusts the learned
// weight book, and writes the daily snapshot. Runs after GradePending in the
// morning job so yesterday's finals are already settled.
func (g *Grader) Audit(daysBack int) (store.AuditSnapshot, error) {
	if daysBack <= 0 {
		daysBack = 14
	}
	now := time.Now()
	snap := store.AuditSnapshot{
		ETDate:      timeutil.ETDateOf(now),
		GeneratedAt: now.UTC(),
		DaysBack:    daysBack,
	}

	graded, err := g.loadGradedWindow(daysBack, now)
	if err != nil {
		return snap, err
	}
	snap.PicksAudited = len(graded)

	wb, err := g.weights.Load()
	if err != nil {
		return snap, fmt.Errorf("load weight book: %w", err)
	}
	wb = wb.Clone()

	groups := groupBySportMarket(graded)
	for _, key := range sortedGroupKeys(groups) {
		picks := groups[key]
		perf := groupPerformance(key.sport, key.market, picks)
		snap.Groups = append(snap.Groups, perf)

		if len(picks) < minGroupSample {
			snap.Notes = append(snap.Notes,
				fmt.Sprintf("%s/%s: %d graded, below sample floor, weights held", key.sport, key.market, len(picks)))
			continue
		}
		diffs := tuneGroup(wb, key.sport, key.market, picks)
		snap.WeightDiffs = append(snap.WeightDiffs, diffs...)
	}

	if err := g.weights.Save(wb); err != nil {
		return snap, fmt.Errorf("save weight book: %w", err)
	}
	if err := g.audits.Write(snap); err != nil {
		return snap, fmt.Errorf("write audit snapshot: %w", err)
	}
	runAt := now.UTC()
	if err := g.weights.RecordTraining(store.TrainingStatus{
		LastRunAt:     &runAt,
		LastOutcome:   "ok",
		PicksAudited:  snap.PicksAudited,
		GroupsTouched: len(snap.WeightDiffs),
	}); err != nil {
		return snap, fmt.Errorf("record training status: %w", err)
	}

	log.Info().Int("picks", snap.PicksAudited).Int("groups", len(snap.Groups)).
		Int("weight_diffs", len(snap.WeightDiffs)).Msg("audit complete")
	return snap, nil
}

func (g *Grader) loadGradedWindow(daysBack int, now time.Time) ([]*models.Pick, error) {
	var out []*models.Pick
	for i := 1; i <= daysBack; i++ {
		etDate := timeutil.ETDateOf(now.AddDate(0, 0, -i))
		picks, err := g.picks.LoadPredictions(etDate, "")
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", etDate, err)
		}
		for _, p := range picks {
			if p.Graded() {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

type groupKey struct {
	sport  string
	market string
}

func groupBySportMarket(picks []*models.Pick) map[groupKey][]*models.Pick {
	groups := make(map[groupKey][]*models.Pick)
	for _, p := range picks {
		k := groupKey{sport: string(p.Sport), market: string(p.Market)}
		groups[k] = append(groups[k], p)
	}
	return groups
}

func sortedGroupKeys(groups map[groupKey][]*models.Pick) []groupKey {
	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].sport != keys[j].sport {
			return keys[i].sport < keys[j].sport
		}
		return keys[i].market < keys[j].market
	})
	return keys
}

// groupPerformance computes the audit row. Hit rate excludes pushes and
// voids; MAE and bias only exist for markets with a numeric actual.
func groupPerformance(sport, market string, picks []*models.Pick) store.GroupPerformance {
	perf := store.GroupPerformance{Sport: sport, Market: market, Graded: len(picks)}

	var scores, outcomes []float64
	var absErr, signedErr float64
	numeric := 0
	for _, p := range picks {
		switch *p.Result {
		case models.ResultWin:
			perf.Wins++
		case models.ResultLoss:
			perf.Losses++
		case models.ResultPush:
			perf.Pushes++
		case models.ResultVoid:
			perf.Voids++
		}
		if *p.Result == models.ResultWin || *p.Result == models.ResultLoss {
			scores = append(scores, p.FinalScore)
			if *p.Result == models.ResultWin {
				outcomes = append(outcomes, 1)
			} else {
				outcomes = append(outcomes, 0)
			}
		}
		if p.ActualValue != nil {
			absErr += math.Abs(*p.ActualValue - p.Line)
			signedErr += *p.ActualValue - p.Line
			numeric++
		}
	}
	if decided := perf.Wins + perf.Losses; decided > 0 {
		perf.HitRate = float64(perf.Wins) / float64(decided)
	}
	if numeric > 0 {
		perf.MAE = absErr / float64(numeric)
		perf.Bias = signedErr / float64(numeric)
	}
	if len(scores) >= 2 {
		corr := stat.Correlation(scores, outcomes, nil)
		if !math.IsNaN(corr) {
			perf.Correlation = corr
		}
	}
	return perf
}

// tuneGroup moves each signal toward the engines whose scores actually
// predicted outcomes, one learnStep at a time, then renormalizes to 1.0.
func tuneGroup(wb models.WeightBook, sport, market string, picks []*models.Pick) []models.WeightDiff {
	weights := wb.Get(models.Sport(sport), models.Market(market))
	if weights == nil {
		weights = store.DefaultSignalWeights()
		wb.Set(models.Sport(sport), models.Market(market), weights)
	}

	before := make(models.SignalWeights, len(weights))
	for k, v := range weights {
		before[k] = v
	}

	outcomes := make([]float64, 0, len(picks))
	decided := make([]*models.Pick, 0, len(picks))
	for _, p := range picks {
		switch *p.Result {
		case models.ResultWin:
			outcomes = append(outcomes, 1)
			decided = append(decided, p)
		case models.ResultLoss:
			outcomes = append(outcomes, 0)
			decided = append(decided, p)
		}
	}
	if len(decided) < 2 {
		return nil
	}

	for _, signal := range weights.Names() {
		engineScore, ok := signalEngines[signal]
		if !ok {
			continue
		}
		scores := make([]float64, len(decided))
		for i, p := range decided {
			scores[i] = engineScore(p)
		}
		corr := stat.Correlation(scores, outcomes, nil)
		if math.IsNaN(corr) || corr == 0 {
			continue
		}
		delta := learnStep
		if corr < 0 {
			delta = -learnStep
		}
		if err := weights.Adjust(signal, delta); err != nil {
			log.Warn().Err(err).Str("signal", signal).Msg("weight adjust skipped")
		}
	}
	weights.Normalize()

	var diffs []models.WeightDiff
	for _, signal := range weights.Names() {
		if weights[signal] == before[signal] {
			continue
		}
		diffs = append(diffs, models.WeightDiff{
			Sport: sport, Market: market, Signal: signal,
			Before: before[signal], After: weights[signal],
		})
	}
	return diffs
}
