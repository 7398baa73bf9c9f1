package grader

import (
	"context"
	"fmt"

	"github.com/sharpedge/pickengine/internal/models"
)

// Dry-run stages. Pre shows what would grade without fetching anything;
// post also resolves finals but still writes nothing.
const (
	StagePre  = "pre"
	StagePost = "post"
)

// DryRunPick is one row of the dry-run report.
type DryRunPick struct {
	PickID  string        `json:"pick_id"`
	Market  models.Market `json:"market"`
	Side    string        `json:"side"`
	Line    float64       `json:"line"`
	Tier    models.Tier   `json:"tier"`
	Graded  bool          `json:"already_graded"`
	WouldBe models.Result `json:"would_be,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// DryRunReport previews a grading pass without touching storage.
type DryRunReport struct {
	ETDate  string       `json:"et_date"`
	Stage   string       `json:"stage"`
	Pending int          `json:"pending"`
	Picks   []DryRunPick `json:"picks"`
}

// DryRun previews grading for one ET date. Stage "pre" never calls upstream;
// stage "post" resolves finals read-only.
func (g *Grader) DryRun(ctx context.Context, etDate, stage string) (DryRunReport, error) {
	if stage != StagePre && stage != StagePost {
		return DryRunReport{}, fmt.Errorf("unknown dry-run stage %q", stage)
	}
	report := DryRunReport{ETDate: etDate, Stage: stage, Picks: []DryRunPick{}}

	picks, err := g.picks.LoadPredictions(etDate, "")
	if err != nil {
		return report, fmt.Errorf("load predictions for %s: %w", etDate, err)
	}

	finals := make(map[string]*finalLookup)
	for _, p := range picks {
		row := DryRunPick{
			PickID: p.PickID, Market: p.Market, Side: p.Side,
			Line: p.Line, Tier: p.Tier, Graded: p.Graded(),
		}
		if !p.Graded() {
			report.Pending++
			if stage == StagePost {
				row.WouldBe, row.Reason = g.preview(ctx, finals, p)
			}
		}
		report.Picks = append(report.Picks, row)
	}
	return report, nil
}

func (g *Grader) preview(ctx context.Context, finals map[string]*finalLookup, p *models.Pick) (models.Result, string) {
	fl := g.finalFor(ctx, finals, p.EventID)
	if fl.err != nil {
		return "", ReasonUpstreamError
	}
	if fl.score == nil {
		return "", ReasonNotFinal
	}
	result, _, reason := g.settle(ctx, p, fl.score)
	return result, reason
}
