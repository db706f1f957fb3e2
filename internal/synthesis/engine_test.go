package synthesis

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/domain/rubric"
)

func testEngine() *Engine {
	return NewEngine(Config{
		CriticalCharges:   []string{"security-negligence", "shell-injection", "unsandboxed-execution", "secret-exposure"},
		FactCapScore:      3,
		VarianceThreshold: 3,
		DissentBlend:      0.75,
	})
}

func singleCriterion(key string) *rubric.Rubric {
	return &rubric.Rubric{Criteria: []rubric.Criterion{{Key: key, Label: strings.ToTitle(key)}}}
}

func opinion(persona, key string, score int, charges ...string) audit.Opinion {
	return audit.Opinion{
		CriterionKey: key,
		PersonaID:    persona,
		Score:        score,
		Argument:     persona + " reasoning on " + key,
		Charges:      charges,
	}
}

func opinions(key string, scores ...int) audit.OpinionSet {
	personas := []string{"defense", "prosecutor", "techlead"}
	set := make(audit.OpinionSet)
	for i, s := range scores {
		set.Add(opinion(personas[i%len(personas)], key, s))
	}
	return set
}

func evidenceWith(key string, contradicted bool) audit.EvidenceSet {
	return audit.EvidenceSet{
		key: {CriterionKey: key, Summary: "finding", Confidence: 0.9, Contradicted: contradicted},
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	e := testEngine()
	r := &rubric.Rubric{Criteria: []rubric.Criterion{
		{Key: "a", Label: "A"}, {Key: "b", Label: "B"},
	}}
	ev := audit.EvidenceSet{
		"a": {CriterionKey: "a", Summary: "x", Confidence: 0.9},
		"b": {CriterionKey: "b", Summary: "y", Confidence: 0.5},
	}

	forward := make(audit.OpinionSet)
	forward.Add(opinion("prosecutor", "a", 2), opinion("defense", "a", 5), opinion("techlead", "a", 4))
	forward.Add(opinion("prosecutor", "b", 3), opinion("defense", "b", 3), opinion("techlead", "b", 4))

	// Same opinions appended in reverse fan-in order.
	reverse := make(audit.OpinionSet)
	reverse.Add(opinion("techlead", "b", 4), opinion("defense", "b", 3), opinion("prosecutor", "b", 3))
	reverse.Add(opinion("techlead", "a", 4), opinion("defense", "a", 5), opinion("prosecutor", "a", 2))

	r1 := e.Synthesize("run", "url", audit.TypeSelf, r, ev, forward, nil)
	r2 := e.Synthesize("run", "url", audit.TypeSelf, r, ev, forward, nil)
	r3 := e.Synthesize("run", "url", audit.TypeSelf, r, ev, reverse, nil)

	b1, _ := json.Marshal(r1)
	b2, _ := json.Marshal(r2)
	b3, _ := json.Marshal(r3)

	if string(b1) != string(b2) {
		t.Error("same input produced different reports")
	}
	if string(b1) != string(b3) {
		t.Error("fan-in order changed the report")
	}
}

func TestSynthesize_SecurityOverridePrecedence(t *testing.T) {
	e := testEngine()
	r := singleCriterion("tool_safety")
	ops := make(audit.OpinionSet)
	ops.Add(
		opinion("prosecutor", "tool_safety", 5, "shell-injection"),
		opinion("defense", "tool_safety", 5),
		opinion("techlead", "tool_safety", 5),
	)

	report := e.Synthesize("run", "url", audit.TypeSelf, r, evidenceWith("tool_safety", false), ops, nil)

	res := report.Results[0]
	if res.FinalScore != audit.ScoreMin {
		t.Errorf("final = %v, want forced minimum %d", res.FinalScore, audit.ScoreMin)
	}
	if res.OverrideApplied != audit.OverrideSecurity {
		t.Errorf("override = %q", res.OverrideApplied)
	}
	if report.SecurityViolations != 1 {
		t.Errorf("security violations = %d, want 1", report.SecurityViolations)
	}
}

func TestSynthesize_FactSupremacyCapsScores(t *testing.T) {
	e := testEngine()
	r := singleCriterion("report_accuracy")
	ops := opinions("report_accuracy", 5, 5, 5)

	report := e.Synthesize("run", "url", audit.TypeSelf, r, evidenceWith("report_accuracy", true), ops, nil)

	res := report.Results[0]
	if res.FinalScore != 3 {
		t.Errorf("final = %v, want capped 3", res.FinalScore)
	}
	if res.OverrideApplied != audit.OverrideFactSupremacy {
		t.Errorf("override = %q", res.OverrideApplied)
	}
}

func TestSynthesize_PlainMeanBaseline(t *testing.T) {
	e := testEngine()
	r := singleCriterion("a")
	ops := opinions("a", 3, 4, 4)

	report := e.Synthesize("run", "url", audit.TypeSelf, r, evidenceWith("a", false), ops, nil)

	res := report.Results[0]
	if res.FinalScore != 3.67 {
		t.Errorf("final = %v, want 3.67", res.FinalScore)
	}
	if res.OverrideApplied != "" {
		t.Errorf("unexpected override %q", res.OverrideApplied)
	}
	if res.DissentNote != "" {
		t.Error("spread 1 should not produce a dissent note")
	}
}

func TestSynthesize_VarianceRule(t *testing.T) {
	e := testEngine()
	r := singleCriterion("a")
	ev := audit.EvidenceSet{
		"a": {CriterionKey: "a", Summary: "finding", Confidence: 0.9},
	}
	ops := make(audit.OpinionSet)
	// Spread 4 >= threshold 3. The prosecutor's low score is the only one
	// backed by cited evidence.
	low := opinion("prosecutor", "a", 1)
	low.CitedEvidence = []string{"a"}
	ops.Add(opinion("defense", "a", 5), opinion("techlead", "a", 5), low)

	report := e.Synthesize("run", "url", audit.TypeSelf, r, ev, ops, nil)

	res := report.Results[0]
	if math.Abs(res.FinalScore-3.67) < 0.001 {
		t.Error("variance rule must not fall back to the plain mean")
	}
	if res.DissentNote == "" {
		t.Error("dissent note missing")
	}
	// mean 11/3, blended 0.75 toward the best-backed score 1.
	want := round2((11.0/3.0)*0.25 + 1*0.75)
	if res.FinalScore != want {
		t.Errorf("final = %v, want %v", res.FinalScore, want)
	}
}

func TestSynthesize_ZeroOpinionsFallback(t *testing.T) {
	e := testEngine()
	r := singleCriterion("a")

	report := e.Synthesize("run", "url", audit.TypeSelf, r, audit.EvidenceSet{}, audit.OpinionSet{}, nil)

	res := report.Results[0]
	if res.FinalScore != audit.ScoreMin {
		t.Errorf("final = %v, want minimum", res.FinalScore)
	}
	if !strings.Contains(res.Remediation, "no evaluable opinions") {
		t.Errorf("remediation = %q", res.Remediation)
	}
	if report.Verdict != VerdictDeficient {
		t.Errorf("verdict = %q", report.Verdict)
	}
}

func TestSynthesize_EndToEndScenario(t *testing.T) {
	e := testEngine()
	r := &rubric.Rubric{Criteria: []rubric.Criterion{
		{Key: "a", Label: "A"},
		{Key: "b", Label: "B"},
	}}
	ev := audit.EvidenceSet{
		"a": {CriterionKey: "a", Summary: "clean", Confidence: 0.9},
		"b": {CriterionKey: "b", Summary: "clean", Confidence: 0.9},
	}

	ops := make(audit.OpinionSet)
	ops.Add(
		opinion("prosecutor", "a", 3), opinion("defense", "a", 4), opinion("techlead", "a", 4),
		opinion("prosecutor", "b", 5, "unsandboxed-execution"), opinion("defense", "b", 5), opinion("techlead", "b", 5),
	)

	report := e.Synthesize("run", "url", audit.TypePeer, r, ev, ops, nil)

	a, b := report.Results[0], report.Results[1]
	if a.FinalScore != 3.67 || a.OverrideApplied != "" {
		t.Errorf("criterion a = %v override %q, want 3.67 with none", a.FinalScore, a.OverrideApplied)
	}
	if b.FinalScore != 1 || b.OverrideApplied != audit.OverrideSecurity {
		t.Errorf("criterion b = %v override %q, want forced 1", b.FinalScore, b.OverrideApplied)
	}
	if report.OverallScore != round2((3.67+1)/2) {
		t.Errorf("overall = %v", report.OverallScore)
	}
}

func TestSynthesize_RemediationFromLowestOpinion(t *testing.T) {
	e := testEngine()
	r := singleCriterion("a")
	ops := make(audit.OpinionSet)
	ops.Add(opinion("defense", "a", 4), opinion("prosecutor", "a", 2), opinion("techlead", "a", 3))

	report := e.Synthesize("run", "url", audit.TypeSelf, r, evidenceWith("a", false), ops, nil)

	if !strings.Contains(report.Results[0].Remediation, "prosecutor") {
		t.Errorf("remediation should come from the lowest-scoring opinion, got %q", report.Results[0].Remediation)
	}
}

func TestSynthesize_NoRemediationAtFullMarks(t *testing.T) {
	e := testEngine()
	r := singleCriterion("a")
	ops := opinions("a", 5, 5, 5)

	report := e.Synthesize("run", "url", audit.TypeSelf, r, evidenceWith("a", false), ops, nil)

	if report.Results[0].Remediation != "" {
		t.Errorf("full marks should carry no remediation, got %q", report.Results[0].Remediation)
	}
	if report.Verdict != VerdictExemplary {
		t.Errorf("verdict = %q", report.Verdict)
	}
}

func TestVerdictBands(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{100, VerdictExemplary},
		{80, VerdictExemplary},
		{79.99, VerdictCompetent},
		{60, VerdictCompetent},
		{59, VerdictBorderline},
		{40, VerdictBorderline},
		{39.99, VerdictDeficient},
		{0, VerdictDeficient},
	}
	for _, tc := range cases {
		if got := verdictFor(tc.pct); got != tc.want {
			t.Errorf("verdictFor(%v) = %q, want %q", tc.pct, got, tc.want)
		}
	}
}
