package engine

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/sharpedge/pickengine/internal/models"
	"github.com/sharpedge/pickengine/internal/timeutil"
)

// EsotericResult is the Esoteric engine output.
type EsotericResult struct {
	Score   float64
	Reasons []string
}

// esotericWeightSum is historical: the composite weights have always summed
// to 1.05, and downstream calibration was fitted against that. Enforced at
// construction.
const esotericWeightSum = 1.05

// EsotericEngine composites the deterministic non-market signals. Signals
// are iterated generically through the Signal interface; adding one means
// adding it to the slice (and rebalancing weights to the historical sum).
type EsotericEngine struct {
	signals []Signal
}

func NewEsotericEngine() *EsotericEngine {
	e := &EsotericEngine{
		signals: []Signal{
			numerologySignal{},
			moonPhaseSignal{},
			fibonacciSignal{},
			vortexSignal{},
			dailyEdgeSignal{},
		},
	}
	sum := 0.0
	for _, s := range e.signals {
		sum += s.Weight()
	}
	if math.Abs(sum-esotericWeightSum) > 1e-9 {
		panic(fmt.Sprintf("esoteric weights sum %.4f, want %.2f", sum, esotericWeightSum))
	}
	return e
}

// Score runs every signal and returns the weighted composite in [0,10].
func (e *EsotericEngine) Score(c models.Candidate, ctx *Context) EsotericResult {
	total := 0.0
	var reasons []string
	for _, s := range e.signals {
		score, sigReasons, status := s.Compute(c, ctx)
		if status != StatusSuccess {
			continue
		}
		total += s.Weight() * score
		reasons = append(reasons, sigReasons...)
	}
	if reasons == nil {
		reasons = []string{"no esoteric inputs resolved"}
	}
	return EsotericResult{Score: clamp(0, 10, total), Reasons: reasons}
}

// magnitudeFor picks the numeric input the signals operate on. Player props
// prioritize prop_line, then spread, then total/10; game markets reverse
// the priority.
func magnitudeFor(c models.Candidate, ctx *Context) (float64, string, bool) {
	propLine := func() (float64, string, bool) {
		if c.Market.IsPlayerProp() && c.Line != 0 {
			return c.Line, "prop_line", true
		}
		return 0, "", false
	}
	spread := func() (float64, string, bool) {
		if ctx.Spread != nil {
			return math.Abs(*ctx.Spread), "spread", true
		}
		return 0, "", false
	}
	total := func() (float64, string, bool) {
		if ctx.Total != nil {
			return *ctx.Total / 10, "total/10", true
		}
		return 0, "", false
	}

	order := []func() (float64, string, bool){propLine, spread, total}
	if c.Market.IsGameMarket() {
		order = []func() (float64, string, bool){total, spread, propLine}
	}
	for _, next := range order {
		if v, src, ok := next(); ok {
			return v, src, true
		}
	}
	return 0, "", false
}

// digitSum reduces an integer to the sum of its decimal digits.
func digitSum(n int) int {
	if n < 0 {
		n = -n
	}
	sum := 0
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}

// reduceToRoot collapses a number to a single digit, preserving the master
// numbers 11, 22 and 33.
func reduceToRoot(n int) int {
	for n > 9 {
		if n == 11 || n == 22 || n == 33 {
			return n
		}
		n = digitSum(n)
	}
	return n
}

// numerologySignal scores the life-path reduction of magnitude and date.
type numerologySignal struct{}

func (numerologySignal) Name() string    { return "numerology" }
func (numerologySignal) Weight() float64 { return 0.25 }

func (numerologySignal) Compute(c models.Candidate, ctx *Context) (float64, []string, Status) {
	mag, src, ok := magnitudeFor(c, ctx)
	if !ok {
		return 0, nil, StatusNoData
	}
	day := ctx.Now.In(timeutil.ETLocation())
	dateSum := digitSum(day.Year()) + digitSum(int(day.Month())) + digitSum(day.Day())
	root := reduceToRoot(int(math.Round(mag)) + dateSum)

	score := 5.0
	switch root {
	case 11, 22, 33:
		score = 9.0
	case 3, 7, 9:
		score = 7.0
	case 4, 8:
		score = 3.5
	}
	return score, []string{fmt.Sprintf("numerology root %d from %s %.1f", root, src, mag)}, StatusSuccess
}

// moonPhaseSignal scores the lunar phase at game time. Phase is computed
// from the 2000-01-06 new moon epoch over the mean synodic month.
type moonPhaseSignal struct{}

func (moonPhaseSignal) Name() string    { return "moon_phase" }
func (moonPhaseSignal) Weight() float64 { return 0.20 }

const synodicDays = 29.530588853

var newMoonEpoch = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

func (moonPhaseSignal) Compute(c models.Candidate, ctx *Context) (float64, []string, Status) {
	days := ctx.Now.Sub(newMoonEpoch).Hours() / 24
	phase := days/synodicDays - math.Floor(days/synodicDays) // 0 new .. 0.5 full

	// Full moons favor overs and chaos sides; new moons favor unders and
	// chalk. Mid-phases are neutral.
	distFull := math.Abs(phase - 0.5)
	score := 5.0
	label := "neutral"
	switch {
	case distFull < 0.06:
		score, label = 8.0, "full"
	case phase < 0.06 || phase > 0.94:
		score, label = 6.5, "new"
	}
	if label != "neutral" && c.Side == models.SideUnder && label == "full" {
		score = 10 - score
	}
	return score, []string{fmt.Sprintf("moon phase %.2f (%s)", phase, label)}, StatusSuccess
}

// fibonacciSignal measures how close the magnitude sits to a Fibonacci
// retracement of the season range for the market.
type fibonacciSignal struct{}

func (fibonacciSignal) Name() string    { return "fibonacci" }
func (fibonacciSignal) Weight() float64 { return 0.25 }

var fibRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// seasonRange approximates the season line range per market class; the
// retracement position is magnitude's place inside it.
func seasonRange(c models.Candidate) (lo, hi float64) {
	switch {
	case c.Market == models.MarketTotal:
		return 180, 260
	case c.Market.IsPlayerProp():
		return 0.5, 45.5
	default:
		return 0, 20
	}
}

func (fibonacciSignal) Compute(c models.Candidate, ctx *Context) (float64, []string, Status) {
	mag, src, ok := magnitudeFor(c, ctx)
	if !ok {
		return 0, nil, StatusNoData
	}
	lo, hi := seasonRange(c)
	if hi <= lo {
		return 0, nil, StatusError
	}
	pos := clamp(0, 1, (mag-lo)/(hi-lo))

	best := 1.0
	ratio := 0.0
	for _, r := range fibRatios {
		if d := math.Abs(pos - r); d < best {
			best, ratio = d, r
		}
	}
	// Within 3% of a retracement level is alignment; score decays linearly
	// to neutral by 15%.
	score := 5.0
	if best <= 0.15 {
		score = 5.0 + 4.0*(1-best/0.15)
	}
	return score, []string{fmt.Sprintf("fib retracement %.3f near %.3f (%s)", pos, ratio, src)}, StatusSuccess
}

// vortexSignal checks membership of the doubling sequence 1-2-4-8-7-5 in
// the magnitude's digital root progression.
type vortexSignal struct{}

func (vortexSignal) Name() string    { return "vortex" }
func (vortexSignal) Weight() float64 { return 0.20 }

var vortexCycle = map[int]bool{1: true, 2: true, 4: true, 8: true, 7: true, 5: true}

func (vortexSignal) Compute(c models.Candidate, ctx *Context) (float64, []string, Status) {
	mag, src, ok := magnitudeFor(c, ctx)
	if !ok {
		return 0, nil, StatusNoData
	}
	root := reduceToRoot(int(math.Round(mag * 2))) // half-points count
	if root > 9 {
		root = digitSum(root)
	}
	score := 4.0
	label := "outside cycle"
	if vortexCycle[root] {
		score, label = 6.5, "in cycle"
	}
	if root == 3 || root == 6 || root == 9 {
		score, label = 7.5, "tesla axis"
	}
	return score, []string{fmt.Sprintf("vortex root %d %s (%s)", root, label, src)}, StatusSuccess
}

// dailyEdgeSignal is a deterministic per-(date, sport, event) edge so two
// otherwise identical candidates on the same day stay distinguishable.
type dailyEdgeSignal struct{}

func (dailyEdgeSignal) Name() string    { return "daily_edge" }
func (dailyEdgeSignal) Weight() float64 { return 0.15 }

func (dailyEdgeSignal) Compute(c models.Candidate, ctx *Context) (float64, []string, Status) {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%s", timeutil.ETDateOf(ctx.Now), c.Event.Sport, c.Event.EventID)
	score := 3.0 + float64(h.Sum32()%500)/100.0 // 3.0 .. 7.99
	return score, []string{fmt.Sprintf("daily edge %.2f", score)}, StatusSuccess
}
