package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/sharpedge/pickengine/internal/models"
)

// Sharp strength ladder. NONE is mandatory whenever the splits provider did
// not answer; strength is never inferred from line variance.
const (
	SharpNone     = "NONE"
	SharpMild     = "MILD"
	SharpModerate = "MODERATE"
	SharpStrong   = "STRONG"
)

// SharpSignal is the splits-derived sub-signal, kept strictly separate from
// the line sub-signal.
type SharpSignal struct {
	Strength  string             `json:"sharp_strength"`
	Status    Status             `json:"sharp_status"`
	SourceAPI string             `json:"sharp_source_api"`
	RawInputs map[string]float64 `json:"sharp_raw_inputs"`
	Score     float64            `json:"sharp_score"`
}

// LineSignal is the cross-book odds-variance sub-signal.
type LineSignal struct {
	Variance  float64 `json:"line_variance"`
	BestEdge  float64 `json:"line_best_edge"`
	SourceAPI string  `json:"line_source_api"`
	Score     float64 `json:"line_score"`
	Status    Status  `json:"line_status"`
}

// ResearchResult is the Research engine output: the weighted composite of
// the two sub-signals plus both sub-signals intact for persistence.
type ResearchResult struct {
	Score   float64
	Reasons []string
	Sharp   SharpSignal
	Line    LineSignal
}

// ResearchEngine blends sharp-money and line-variance market signals.
type ResearchEngine struct{}

func NewResearchEngine() *ResearchEngine { return &ResearchEngine{} }

// defaultResearchWeights apply until the audit loop has trained a group.
var defaultResearchWeights = models.SignalWeights{"sharp": 0.6, "line": 0.4}

// Score computes both sub-signals and their learned-weight blend. When the
// splits provider is down the odds-only path still produces a line score,
// but the sharp fields stay NONE/NO_DATA; conflating the two sources is the
// one bug this engine exists to prevent.
func (e *ResearchEngine) Score(c models.Candidate, ctx *Context) ResearchResult {
	sharp := e.sharpSignal(c, ctx)
	line := e.lineSignal(c, ctx)

	weights := ctx.ResearchWeights
	if weights == nil {
		weights = defaultResearchWeights
	}
	wSharp, wLine := weights["sharp"], weights["line"]
	if wSharp+wLine <= 0 {
		wSharp, wLine = defaultResearchWeights["sharp"], defaultResearchWeights["line"]
	}

	score := clamp(0, 10, (wSharp*sharp.Score+wLine*line.Score)/(wSharp+wLine))

	reasons := []string{}
	if sharp.Status == StatusSuccess {
		reasons = append(reasons, fmt.Sprintf("sharp %s (money %.0f%% vs tickets %.0f%%)",
			sharp.Strength, sharp.RawInputs["money_pct"], sharp.RawInputs["ticket_pct"]))
	} else {
		reasons = append(reasons, "sharp "+string(sharp.Status))
	}
	if line.Status == StatusSuccess {
		reasons = append(reasons, fmt.Sprintf("line variance %.2f across books, best edge %.2f", line.Variance, line.BestEdge))
	}

	return ResearchResult{Score: score, Reasons: reasons, Sharp: sharp, Line: line}
}

// sharpSignal derives strength solely from the splits provider. A money/
// ticket divergence on the candidate side is the classic sharp fingerprint.
func (e *ResearchEngine) sharpSignal(c models.Candidate, ctx *Context) SharpSignal {
	sig := SharpSignal{
		Strength:  SharpNone,
		Status:    ctx.SplitsStatus,
		SourceAPI: ctx.SplitsSourceAPI,
		RawInputs: map[string]float64{},
	}
	if ctx.SplitsStatus != StatusSuccess || ctx.Splits == nil {
		if sig.Status == "" {
			sig.Status = StatusNoData
		}
		return sig
	}

	s := ctx.Splits
	sig.RawInputs["ticket_pct"] = s.TicketPct
	sig.RawInputs["money_pct"] = s.MoneyPct
	divergence := s.MoneyPct - s.TicketPct
	sig.RawInputs["divergence"] = divergence

	onSide := strings.EqualFold(s.SharpSide, c.Side)
	abs := math.Abs(divergence)
	switch {
	case abs >= 25:
		sig.Strength = SharpStrong
	case abs >= 15:
		sig.Strength = SharpModerate
	case abs >= 5:
		sig.Strength = SharpMild
	default:
		sig.Strength = SharpNone
	}

	base := map[string]float64{SharpNone: 3.5, SharpMild: 5.5, SharpModerate: 7.0, SharpStrong: 9.0}[sig.Strength]
	if sig.Strength != SharpNone && !onSide {
		// Sharp action against the candidate side is a fade signal.
		base = 10 - base
	}
	sig.Score = clamp(0, 10, base)
	return sig
}

// lineSignal derives value solely from cross-book odds variance: disperse
// books plus a candidate price better than consensus means the candidate's
// book is lagging the market.
func (e *ResearchEngine) lineSignal(c models.Candidate, ctx *Context) LineSignal {
	sig := LineSignal{SourceAPI: ctx.OddsSourceAPI, Status: StatusNoData}
	if ctx.Odds == nil {
		return sig
	}
	lines := ctx.Odds.LinesFor(c.Event.EventID, c.Market, c.Side)
	if len(lines) < 2 {
		return sig
	}
	sig.Status = StatusSuccess

	mean := 0.0
	for _, l := range lines {
		mean += l.Line
	}
	mean /= float64(len(lines))
	variance := 0.0
	for _, l := range lines {
		variance += (l.Line - mean) * (l.Line - mean)
	}
	sig.Variance = math.Sqrt(variance / float64(len(lines)))

	// Edge of the candidate's line against consensus, signed so a better
	// number for the bettor scores higher: Over wants a lower total, Under a
	// higher one, spread sides always want more points.
	edge := c.Line - mean
	if strings.EqualFold(c.Side, models.SideOver) {
		edge = -edge
	}
	sig.BestEdge = edge

	sig.Score = clamp(0, 10, 5.0+edge*2.0+math.Min(sig.Variance, 1.5))
	return sig
}
