package scoring

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/telemetry"
)

// Postprocess applies the authoritative pipeline ordering to scored picks:
// dedup by fingerprint, output score thresholds, hidden-tier filter,
// contradiction gate, deterministic sort. Persistence and top-N slicing
// belong to the caller.
func Postprocess(picks []*models.Pick) []*models.Pick {
	picks = DedupByFingerprint(picks)
	picks = filterThresholdsAndTiers(picks)
	picks = ResolveContradictions(picks)
	SortPicks(picks)
	return picks
}

// DedupByFingerprint collapses picks sharing a pick_id, keeping the highest
// final score and breaking ties on book preference.
func DedupByFingerprint(picks []*models.Pick) []*models.Pick {
	byID := make(map[string]int)
	var out []*models.Pick
	for _, p := range picks {
		idx, seen := byID[p.PickID]
		if !seen {
			byID[p.PickID] = len(out)
			out = append(out, p)
			continue
		}
		cur := out[idx]
		if p.FinalScore > cur.FinalScore ||
			(p.FinalScore == cur.FinalScore && models.BookRank(p.Book) < models.BookRank(cur.Book)) {
			out[idx] = p
		}
	}
	return out
}

func filterThresholdsAndTiers(picks []*models.Pick) []*models.Pick {
	var out []*models.Pick
	for _, p := range picks {
		if !passesOutputThreshold(p) {
			continue
		}
		if p.Tier.Hidden() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ResolveContradictions groups picks by unique key and keeps one side of
// each conflict: higher final score, then book preference. The suppressed
// side is counted per class and logged; both sides are never emitted.
func ResolveContradictions(picks []*models.Pick) []*models.Pick {
	byKey := make(map[string]int)
	var out []*models.Pick
	for _, p := range picks {
		key := p.UniqueKey()
		idx, seen := byKey[key]
		if !seen {
			byKey[key] = len(out)
			out = append(out, p)
			continue
		}
		cur := out[idx]
		winner, loser := cur, p
		if p.FinalScore > cur.FinalScore ||
			(p.FinalScore == cur.FinalScore && models.BookRank(p.Book) < models.BookRank(cur.Book)) {
			winner, loser = p, cur
		}
		out[idx] = winner

		class := "games"
		if loser.Market.IsPlayerProp() {
			class = "props"
		}
		telemetry.ContradictionBlocked.WithLabelValues(class).Inc()
		log.Info().
			Str("kept", winner.PickID).Str("kept_side", winner.Side).
			Str("blocked", loser.PickID).Str("blocked_side", loser.Side).
			Str("unique_key", key).
			Msg("contradiction resolved")
	}
	return out
}

// SortPicks orders deterministically: tier rank desc, final score desc,
// pick_id asc. Two identical slates always emit the same order.
func SortPicks(picks []*models.Pick) {
	sort.SliceStable(picks, func(i, j int) bool {
		a, b := picks[i], picks[j]
		if a.Tier.Rank() != b.Tier.Rank() {
			return a.Tier.Rank() > b.Tier.Rank()
		}
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		return a.PickID < b.PickID
	})
}

// SplitByClass partitions sorted picks into props and games, each capped at
// topN (<=0 means uncapped).
func SplitByClass(picks []*models.Pick, topN int) (props, games []*models.Pick) {
	props, games = []*models.Pick{}, []*models.Pick{}
	for _, p := range picks {
		if p.Market.IsPlayerProp() {
			props = append(props, p)
		} else {
			games = append(games, p)
		}
	}
	if topN > 0 {
		if len(props) > topN {
			props = props[:topN]
		}
		if len(games) > topN {
			games = games[:topN]
		}
	}
	return props, games
}
