package scoring

import "github.com/sharpedge/pickengine/internal/models"

// Output score thresholds, applied after tier assignment. An EDGE_LEAN game
// pick at 6.7 is never emitted: valid tier, failed threshold.
const (
	GameScoreFloor = 7.0
	PropScoreFloor = 6.5
)

// GOLD_STAR hard gates. All must pass or the pick downgrades to EDGE_LEAN.
const (
	goldGateAI       = 6.8
	goldGateResearch = 6.5
	goldGateJarvis   = 6.5
	goldGateEsoteric = 5.5
)

// assignTier walks the ladder. Titanium overrides everything; GOLD_STAR
// additionally requires the per-engine hard gates.
func assignTier(ai, research, esoteric, jarvis, finalScore float64, titanium TitaniumEval) models.Tier {
	if titanium.Triggered {
		return models.TierTitaniumSmash
	}
	switch {
	case finalScore >= 7.5:
		if ai >= goldGateAI && research >= goldGateResearch &&
			jarvis >= goldGateJarvis && esoteric >= goldGateEsoteric {
			return models.TierGoldStar
		}
		return models.TierEdgeLean
	case finalScore >= 6.5:
		return models.TierEdgeLean
	case finalScore >= 5.5:
		return models.TierMonitor
	default:
		return models.TierPass
	}
}

// passesOutputThreshold applies the market-class score floor.
func passesOutputThreshold(p *models.Pick) bool {
	if p.Market.IsPlayerProp() {
		return p.FinalScore >= PropScoreFloor
	}
	return p.FinalScore >= GameScoreFloor
}
