package engine

import (
	"fmt"
	"math"

	"github.com/sharpedge/pickengine/internal/models"
)

// Jarvis scoring constants. Additive-from-baseline: the baseline holds when
// inputs exist, each sacred-number trigger stacks a decayed contribution.
const (
	jarvisBaseline     = 4.5
	jarvisDecay        = 0.70
	jarvisContribution = 1.6
)

// sacredNumbers are the gematria trigger set.
var sacredNumbers = map[int]bool{
	3: true, 7: true, 9: true, 11: true, 13: true,
	22: true, 27: true, 33: true, 41: true, 56: true,
}

// JarvisResult carries the seven-field transparency contract. All seven
// fields are populated whenever the engine ran, including the zero-trigger
// case where RS stays at baseline and FailReasons explains why.
type JarvisResult struct {
	RS          float64
	Active      bool
	HitsCount   int
	TriggersHit []string
	Reasons     []string
	FailReasons []string
	InputsUsed  map[string]float64
}

// JarvisEngine scores sacred-number alignment on the candidate's numbers.
type JarvisEngine struct{}

func NewJarvisEngine() *JarvisEngine { return &JarvisEngine{} }

// Score evaluates triggers on line, total and digit-sums. Stacked triggers
// decay at 0.70 per additional hit; RS is capped at 10. With no numeric
// inputs at all the engine reports baseline with a fail reason rather than
// skipping fields.
func (e *JarvisEngine) Score(c models.Candidate, ctx *Context) JarvisResult {
	res := JarvisResult{
		RS:          jarvisBaseline,
		TriggersHit: []string{},
		Reasons:     []string{},
		FailReasons: []string{},
		InputsUsed:  map[string]float64{},
	}

	if c.Line != 0 {
		res.InputsUsed["line"] = c.Line
	}
	if ctx.Spread != nil {
		res.InputsUsed["spread"] = *ctx.Spread
	}
	if ctx.Total != nil {
		res.InputsUsed["total"] = *ctx.Total
	}
	if len(res.InputsUsed) == 0 {
		res.FailReasons = append(res.FailReasons, "no numeric inputs (line, spread, total all absent)")
		res.Reasons = append(res.Reasons, fmt.Sprintf("baseline %.1f, no inputs", jarvisBaseline))
		return res
	}

	type trigger struct {
		name  string
		value int
	}
	var triggers []trigger
	check := func(name string, raw float64) {
		whole := int(math.Abs(math.Round(raw)))
		if sacredNumbers[whole] {
			triggers = append(triggers, trigger{name: fmt.Sprintf("%s=%d", name, whole), value: whole})
		}
		if ds := digitSum(whole); ds != whole && sacredNumbers[ds] {
			triggers = append(triggers, trigger{name: fmt.Sprintf("%s digit-sum=%d", name, ds), value: ds})
		}
	}
	// Fixed evaluation order keeps TriggersHit deterministic.
	for _, in := range []struct {
		name string
		v    float64
	}{
		{"line", c.Line},
		{"spread", valueOrZero(ctx.Spread)},
		{"total", valueOrZero(ctx.Total)},
	} {
		if in.v != 0 {
			check(in.name, in.v)
		}
	}

	if len(triggers) == 0 {
		res.FailReasons = append(res.FailReasons, "no sacred number triggers fired")
		res.Reasons = append(res.Reasons, fmt.Sprintf("baseline %.1f, 0 triggers", jarvisBaseline))
		return res
	}

	rs := jarvisBaseline
	decay := 1.0
	for _, t := range triggers {
		rs += jarvisContribution * decay
		decay *= jarvisDecay
		res.TriggersHit = append(res.TriggersHit, t.name)
	}
	res.RS = math.Min(10, rs)
	res.Active = true
	res.HitsCount = len(triggers)
	res.Reasons = append(res.Reasons,
		fmt.Sprintf("baseline %.1f, %d triggers, rs %.2f", jarvisBaseline, len(triggers), res.RS))
	return res
}

func valueOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
