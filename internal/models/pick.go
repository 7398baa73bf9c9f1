package models

import (
	"fmt"
	"math"
	"time"
)

// Pick is a scored, persisted recommendation. It is the unit of record in
// predictions.jsonl: written once by the scoring pipeline, mutated only by the
// grader, never deleted. Readers tolerate unknown fields; writers emit every
// required field.
type Pick struct {
	// Identity
	PickID       string  `json:"pick_id"`
	Sport        Sport   `json:"sport"`
	EventID      string  `json:"event_id"`
	Market       Market  `json:"market"`
	Side         string  `json:"side"`
	Line         float64 `json:"line"`
	PlayerID     string  `json:"player_id,omitempty"`
	PlayerName   string  `json:"player_name,omitempty"`
	Book         string  `json:"book"`
	OddsAmerican *int    `json:"odds_american"`
	Home         string  `json:"home,omitempty"`
	Away         string  `json:"away,omitempty"`

	// Engine scores, each in [0,10].
	AIScore       float64 `json:"ai_score"`
	ResearchScore float64 `json:"research_score"`
	EsotericScore float64 `json:"esoteric_score"`
	JarvisScore   float64 `json:"jarvis_score"`

	// ContextModifier is clamped to [-0.35, +0.35]. ContextScore carries the
	// same value for readers of the legacy field name.
	ContextModifier float64 `json:"context_modifier"`
	ContextScore    float64 `json:"context_score"`

	FinalScore float64 `json:"final_score"`
	Tier       Tier    `json:"tier"`

	// Additive adjustments, persisted individually for auditability. Each is
	// the post-clamp value that entered the final score.
	ConfluenceBoost       float64 `json:"confluence_boost"`
	ConfluenceLevel       string  `json:"confluence_level,omitempty"`
	MSRFBoost             float64 `json:"msrf_boost"`
	JasonSimBoost         float64 `json:"jason_sim_boost"`
	SERPBoost             float64 `json:"serp_boost"`
	TotalBoosts           float64 `json:"total_boosts"`
	EnsembleAdjustment    float64 `json:"ensemble_adjustment"`
	LiveAdjustment        float64 `json:"live_adjustment"`
	TotalsCalibration     float64 `json:"totals_calibration_adjustment"`
	HookPenalty           float64 `json:"hook_penalty"`
	ExpertConsensusBoost  float64 `json:"expert_consensus_boost"`
	PropCorrelationAdjust float64 `json:"prop_correlation_adjustment"`

	// Reasoning, parallel to the engine scores.
	AIReasons       []string `json:"ai_reasons"`
	ResearchReasons []string `json:"research_reasons"`
	EsotericReasons []string `json:"esoteric_reasons"`
	JarvisReasons   []string `json:"jarvis_reasons"`

	// Engine diagnostics.
	AIMode         string `json:"ai_mode,omitempty"`
	SharpStrength  string `json:"sharp_strength,omitempty"`
	SharpStatus    string `json:"sharp_status,omitempty"`
	SharpSourceAPI string `json:"sharp_source_api,omitempty"`
	LineSourceAPI  string `json:"line_source_api,omitempty"`

	// Jarvis transparency contract: all seven fields emitted whenever the
	// engine ran, even with zero triggers.
	JarvisRS          float64            `json:"jarvis_rs"`
	JarvisActive      bool               `json:"jarvis_active"`
	JarvisHitsCount   int                `json:"jarvis_hits_count"`
	JarvisTriggersHit []string           `json:"jarvis_triggers_hit"`
	JarvisFailReasons []string           `json:"jarvis_fail_reasons"`
	JarvisInputsUsed  map[string]float64 `json:"jarvis_inputs_used"`

	// Titanium transparency.
	TitaniumTriggered        bool     `json:"titanium_triggered"`
	TitaniumCount            int      `json:"titanium_count"`
	TitaniumQualifiedEngines []string `json:"titanium_qualified_engines"`

	// Timestamps. CreatedAt is a UTC instant; the two ET fields are the only
	// time representations surfaced to consumers.
	CreatedAt        time.Time `json:"created_at"`
	EventStartTimeET string    `json:"event_start_time_et"`
	ETDate           string    `json:"et_date"`

	// Grading, populated by the auto-grader after game completion.
	Result       *Result    `json:"result"`
	ActualValue  *float64   `json:"actual_value,omitempty"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
	ClosingLine  *float64   `json:"closing_line,omitempty"`
	BeatCLV      *bool      `json:"beat_clv,omitempty"`
	ProcessGrade string     `json:"process_grade,omitempty"`
}

// Graded reports whether the pick has a final outcome.
func (p *Pick) Graded() bool { return p.Result != nil }

// Subject is the contradiction-gate subject: the player for props, the
// literal "Game" for totals, spreads and moneylines.
func (p *Pick) Subject() string {
	if p.Market.IsPlayerProp() {
		return p.PlayerID
	}
	return "Game"
}

// UniqueKey groups opposite sides of the same bet for the contradiction gate:
//
//	sport | et_date | event_id | market | prop_type | subject | |line|
//
// The absolute line makes +1.5 and -1.5 spreads collide on purpose.
func (p *Pick) UniqueKey() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%.2f",
		p.Sport, p.ETDate, p.EventID, p.Market, p.Market.PropStat(), p.Subject(), math.Abs(p.Line))
}

// Validate enforces the required-field schema before any write and after any
// read that feeds grading. Violations are programming errors upstream, so the
// messages name the offending field precisely.
func (p *Pick) Validate() error {
	switch {
	case len(p.PickID) != 12:
		return fmt.Errorf("pick_id must be 12 hex chars, got %q", p.PickID)
	case p.Sport == "":
		return fmt.Errorf("pick %s: sport missing", p.PickID)
	case p.EventID == "":
		return fmt.Errorf("pick %s: event_id missing", p.PickID)
	case p.Market == "":
		return fmt.Errorf("pick %s: market missing", p.PickID)
	case p.Side == "":
		return fmt.Errorf("pick %s: side missing", p.PickID)
	case p.Book == "":
		return fmt.Errorf("pick %s: book missing", p.PickID)
	case p.ETDate == "":
		return fmt.Errorf("pick %s: et_date missing", p.PickID)
	case p.EventStartTimeET == "":
		return fmt.Errorf("pick %s: event_start_time_et missing", p.PickID)
	case p.CreatedAt.IsZero():
		return fmt.Errorf("pick %s: created_at missing", p.PickID)
	case p.Tier == "":
		return fmt.Errorf("pick %s: tier missing", p.PickID)
	}
	if p.Market.IsPlayerProp() && p.PlayerID == "" {
		return fmt.Errorf("pick %s: player prop without player_id", p.PickID)
	}
	for name, v := range map[string]float64{
		"ai_score":       p.AIScore,
		"research_score": p.ResearchScore,
		"esoteric_score": p.EsotericScore,
		"jarvis_score":   p.JarvisScore,
		"final_score":    p.FinalScore,
	} {
		if v < 0 || v > 10 {
			return fmt.Errorf("pick %s: %s %.4f outside [0,10]", p.PickID, name, v)
		}
	}
	if p.ContextModifier < -0.35 || p.ContextModifier > 0.35 {
		return fmt.Errorf("pick %s: context_modifier %.4f outside [-0.35,0.35]", p.PickID, p.ContextModifier)
	}
	if p.TotalBoosts > 1.5+1e-9 {
		return fmt.Errorf("pick %s: total_boosts %.4f exceeds cap 1.5", p.PickID, p.TotalBoosts)
	}
	if p.AIReasons == nil || p.ResearchReasons == nil || p.EsotericReasons == nil || p.JarvisReasons == nil {
		return fmt.Errorf("pick %s: reason arrays must be present", p.PickID)
	}
	if p.TitaniumQualifiedEngines == nil {
		return fmt.Errorf("pick %s: titanium_qualified_engines must be present", p.PickID)
	}
	return nil
}
