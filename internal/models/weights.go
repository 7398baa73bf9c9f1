package models

import (
	"fmt"
	"math"
	"sort"
)

// MaxWeightStep is the most any single signal weight may move per audit cycle.
const MaxWeightStep = 0.05

// SignalWeights maps signal name to a non-negative weight. Within one
// (sport, market) group the weights sum to 1.0 after any adjustment.
type SignalWeights map[string]float64

// WeightBook is the persisted weights.json shape: sport -> market -> signal
// weights. It is read-mostly; the grader replaces it atomically.
type WeightBook map[string]map[string]SignalWeights

// Get returns the weights for a (sport, market) group, or nil when the group
// has never been trained.
func (wb WeightBook) Get(sport Sport, market Market) SignalWeights {
	if byMarket, ok := wb[string(sport)]; ok {
		return byMarket[string(market)]
	}
	return nil
}

// Set installs weights for a group, creating intermediate maps as needed.
func (wb WeightBook) Set(sport Sport, market Market, w SignalWeights) {
	byMarket, ok := wb[string(sport)]
	if !ok {
		byMarket = make(map[string]SignalWeights)
		wb[string(sport)] = byMarket
	}
	byMarket[string(market)] = w
}

// Clone deep-copies the book so adjustments never mutate a shared snapshot.
func (wb WeightBook) Clone() WeightBook {
	out := make(WeightBook, len(wb))
	for sport, byMarket := range wb {
		m := make(map[string]SignalWeights, len(byMarket))
		for market, weights := range byMarket {
			w := make(SignalWeights, len(weights))
			for k, v := range weights {
				w[k] = v
			}
			m[market] = w
		}
		out[sport] = m
	}
	return out
}

// Normalize scales the group to sum to exactly 1.0, preserving proportions.
// A group summing to zero is reset to uniform weights.
func (sw SignalWeights) Normalize() {
	sum := 0.0
	for _, v := range sw {
		sum += v
	}
	if sum <= 0 {
		uniform := 1.0 / float64(len(sw))
		for k := range sw {
			sw[k] = uniform
		}
		return
	}
	for k := range sw {
		sw[k] /= sum
	}
}

// Adjust moves one signal's weight by delta, clamped to ±MaxWeightStep and
// floored at zero. The caller renormalizes the group after the full pass.
func (sw SignalWeights) Adjust(signal string, delta float64) error {
	cur, ok := sw[signal]
	if !ok {
		return fmt.Errorf("unknown signal %q", signal)
	}
	clamped := math.Max(-MaxWeightStep, math.Min(MaxWeightStep, delta))
	sw[signal] = math.Max(0, cur+clamped)
	return nil
}

// Names returns the signal names in deterministic order.
func (sw SignalWeights) Names() []string {
	names := make([]string, 0, len(sw))
	for k := range sw {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// WeightDiff records one signal's movement for the audit snapshot.
type WeightDiff struct {
	Sport  string  `json:"sport"`
	Market string  `json:"market"`
	Signal string  `json:"signal"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}
