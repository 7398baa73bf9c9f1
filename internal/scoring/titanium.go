package scoring

// titaniumThreshold is the engine-score bar for the three-of-four rule.
// Exactly 8.0 qualifies; 7.999 does not.
const titaniumThreshold = 8.0

// TitaniumEval is the transparency payload for the three-of-four rule.
type TitaniumEval struct {
	Count            int
	QualifiedEngines []string
	Triggered        bool
}

// EvaluateTitanium is the single implementation of the titanium
// three-of-four rule. Every call site must use this function; the tier
// ladder, the persisted transparency fields and the tests all route here so
// the rule cannot drift between copies.
func EvaluateTitanium(ai, research, esoteric, jarvis, finalScore float64) TitaniumEval {
	eval := TitaniumEval{QualifiedEngines: []string{}}
	for _, e := range []struct {
		name  string
		score float64
	}{
		{"ai", ai},
		{"research", research},
		{"esoteric", esoteric},
		{"jarvis", jarvis},
	} {
		if e.score >= titaniumThreshold {
			eval.Count++
			eval.QualifiedEngines = append(eval.QualifiedEngines, e.name)
		}
	}
	eval.Triggered = eval.Count >= 3 && finalScore >= titaniumThreshold
	return eval
}
