// Package synthesis implements the deterministic reconciliation core: pure
// rule application over the opinion set, no generative step. Re-running
// synthesis on the same opinions and evidence yields a byte-identical report.
package synthesis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/domain/rubric"
	"github.com/forensiq/tribunal/internal/prompt"
)

// Config holds the tunable constants of the rule set.
type Config struct {
	// CriticalCharges force the minimum score when filed by any persona.
	CriticalCharges []string
	// FactCapScore is the score ceiling when evidence is contradicted by fact.
	FactCapScore int
	// VarianceThreshold is the persona score spread (max-min) at or above
	// which plain averaging is abandoned.
	VarianceThreshold int
	// DissentBlend is the weight shifted toward the best-backed opinion
	// under the variance rule, in [0,1].
	DissentBlend float64
}

// Verdict bands, applied to the percentage in descending order.
const (
	VerdictExemplary  = "PASS - Exemplary"
	VerdictCompetent  = "PASS - Competent"
	VerdictBorderline = "BORDERLINE - Needs Work"
	VerdictDeficient  = "FAIL - Deficient"
)

// Engine applies the rule set. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	cfg      Config
	critical map[string]bool
}

// NewEngine builds the synthesis engine.
func NewEngine(cfg Config) *Engine {
	critical := make(map[string]bool, len(cfg.CriticalCharges))
	for _, c := range cfg.CriticalCharges {
		critical[c] = true
	}
	if cfg.DissentBlend < 0 {
		cfg.DissentBlend = 0
	}
	if cfg.DissentBlend > 1 {
		cfg.DissentBlend = 1
	}
	return &Engine{cfg: cfg, critical: critical}
}

// Synthesize reconciles all opinions into the final report. It never fails:
// missing evidence, placeholder entries, and criteria with zero opinions all
// degrade to defined fallback values.
func (e *Engine) Synthesize(runID, repoURL string, auditType audit.Type, r *rubric.Rubric, ev audit.EvidenceSet, ops audit.OpinionSet, failures []audit.Failure) audit.Report {
	results := make([]audit.CriterionResult, 0, len(r.Criteria))
	securityViolations := 0
	var total float64

	for _, c := range r.Criteria {
		res := e.resolveCriterion(c, ev, ops[c.Key])
		if res.OverrideApplied == audit.OverrideSecurity {
			securityViolations++
		}
		total += res.FinalScore
		results = append(results, res)
	}

	overall := 0.0
	if len(results) > 0 {
		overall = round2(total / float64(len(results)))
	}
	percentage := round2(overall / audit.ScoreMax * 100)

	return audit.Report{
		RunID:              runID,
		RepoURL:            repoURL,
		AuditType:          auditType,
		OverallScore:       overall,
		Percentage:         percentage,
		Verdict:            verdictFor(percentage),
		Results:            results,
		SecurityViolations: securityViolations,
		Failures:           failures,
	}
}

// resolveCriterion applies the rules for one criterion in strict order:
// security override, fact supremacy, baseline mean, variance re-evaluation,
// then remediation assembly.
func (e *Engine) resolveCriterion(c rubric.Criterion, set audit.EvidenceSet, raw []audit.Opinion) audit.CriterionResult {
	ev := set[c.Key]
	res := audit.CriterionResult{
		CriterionKey: c.Key,
		Label:        c.Label,
	}

	if len(raw) == 0 {
		res.FinalScore = audit.ScoreMin
		res.Remediation = "no evaluable opinions were produced for this criterion; re-run the audit"
		return res
	}

	// Fan-in order is meaningless; sort by persona for stable output.
	opinions := make([]audit.Opinion, len(raw))
	copy(opinions, raw)
	sort.Slice(opinions, func(i, j int) bool { return opinions[i].PersonaID < opinions[j].PersonaID })
	res.Opinions = opinions
	res.Charges = collectCharges(opinions)

	// Rule 1: security override takes absolute precedence.
	for _, charge := range res.Charges {
		if e.critical[charge] {
			res.FinalScore = audit.ScoreMin
			res.OverrideApplied = audit.OverrideSecurity
			res.Remediation = lowestOpinion(opinions).Argument
			return res
		}
	}

	// Rule 2: fact supremacy caps every score when evidence is contradicted.
	scores := make([]float64, len(opinions))
	capped := false
	for i, op := range opinions {
		s := float64(op.Score)
		if ev.Contradicted && s > float64(e.cfg.FactCapScore) {
			s = float64(e.cfg.FactCapScore)
			capped = true
		}
		scores[i] = s
	}
	if capped {
		res.OverrideApplied = audit.OverrideFactSupremacy
	}

	// Rule 3: baseline is the plain arithmetic mean.
	final := mean(scores)

	// Rule 4: high variance abandons the mean for the best-backed opinion.
	if spread(scores) >= float64(e.cfg.VarianceThreshold) {
		best := bestBacked(opinions, set)
		final = final*(1-e.cfg.DissentBlend) + scores[best]*e.cfg.DissentBlend
		res.DissentNote = dissentNote(opinions, best)
	}

	res.FinalScore = round2(final)

	// Rule 5: remediation comes from the harshest opinion, none at full marks.
	if res.FinalScore < audit.ScoreMax {
		res.Remediation = lowestOpinion(opinions).Argument
	}
	return res
}

// bestBacked returns the index of the opinion with the strongest forensic
// backing: the confidence sum of its cited evidence keys that actually exist
// in the set, tie-broken by persona id so the choice never depends on slice
// order.
func bestBacked(opinions []audit.Opinion, set audit.EvidenceSet) int {
	best := 0
	bestWeight := -1.0
	for i, op := range opinions {
		w := 0.0
		for _, key := range op.CitedEvidence {
			if e, ok := set[key]; ok {
				w += e.Confidence
			}
		}
		if w > bestWeight || (w == bestWeight && op.PersonaID < opinions[best].PersonaID) {
			best, bestWeight = i, w
		}
	}
	return best
}

func dissentNote(opinions []audit.Opinion, best int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "personas diverged (spread %.0f); leaned toward %s as best evidenced. ",
		spreadInts(opinions), opinions[best].PersonaID)
	for i, op := range opinions {
		if i > 0 {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "%s (%d): %s", op.PersonaID, op.Score, prompt.Truncate(op.Argument, 160))
	}
	return b.String()
}

func collectCharges(opinions []audit.Opinion) []string {
	seen := make(map[string]bool)
	for _, op := range opinions {
		for _, c := range op.Charges {
			seen[c] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	charges := make([]string, 0, len(seen))
	for c := range seen {
		charges = append(charges, c)
	}
	sort.Strings(charges)
	return charges
}

func lowestOpinion(opinions []audit.Opinion) audit.Opinion {
	low := opinions[0]
	for _, op := range opinions[1:] {
		if op.Score < low.Score || (op.Score == low.Score && op.PersonaID < low.PersonaID) {
			low = op
		}
	}
	return low
}

func verdictFor(percentage float64) string {
	switch {
	case percentage >= 80:
		return VerdictExemplary
	case percentage >= 60:
		return VerdictCompetent
	case percentage >= 40:
		return VerdictBorderline
	default:
		return VerdictDeficient
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func spread(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return hi - lo
}

func spreadInts(opinions []audit.Opinion) float64 {
	xs := make([]float64, len(opinions))
	for i, op := range opinions {
		xs[i] = float64(op.Score)
	}
	return spread(xs)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
