// Package audit defines the domain types for a forensic audit run: evidence,
// judicial opinions, reconciled criterion results, and the final report.
package audit

import (
	"fmt"
	"sort"
)

// Type identifies who the audit is performed for.
type Type string

const (
	TypeSelf     Type = "self"
	TypePeer     Type = "peer"
	TypeReceived Type = "received"
)

// ParseType validates and returns an audit Type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeSelf, TypePeer, TypeReceived:
		return Type(s), nil
	}
	return "", fmt.Errorf("invalid audit type %q (want self, peer, or received)", s)
}

// Score bounds for a single judicial opinion.
const (
	ScoreMin = 1
	ScoreMax = 5
)

// ChargeStructuredOutputFailure is attached to degraded opinions emitted when
// a persona exhausted its schema-validation retries.
const ChargeStructuredOutputFailure = "structured-output-failure"

// Evidence is one immutable fact bundle about a single rubric criterion,
// produced by exactly one detective.
type Evidence struct {
	CriterionKey string         `json:"criterion_key"`
	Summary      string         `json:"summary"`
	Confidence   float64        `json:"confidence"`
	Locators     []string       `json:"locators,omitempty"`
	Missing      bool           `json:"missing,omitempty"`
	Contradicted bool           `json:"contradicted,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
}

// Placeholder returns the explicit "insufficient evidence" entry the
// aggregator emits for a criterion no detective covered.
func Placeholder(criterionKey string) Evidence {
	return Evidence{
		CriterionKey: criterionKey,
		Summary:      "insufficient evidence: no detective produced findings for this criterion",
		Confidence:   0,
		Missing:      true,
	}
}

// EvidenceSet maps criterion key to the Evidence collected for it. After
// aggregation every rubric criterion has an entry, real or placeholder.
type EvidenceSet map[string]Evidence

// Keys returns the criterion keys in sorted order for deterministic iteration.
func (s EvidenceSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Opinion is one persona's scored verdict for one criterion.
type Opinion struct {
	CriterionKey  string   `json:"criterion_key"`
	PersonaID     string   `json:"persona_id"`
	Score         int      `json:"score"`
	Argument      string   `json:"argument"`
	CitedEvidence []string `json:"cited_evidence,omitempty"`
	Charges       []string `json:"charges,omitempty"`
}

// Validate checks the opinion against the fixed schema: score in range,
// non-empty argument, and cited evidence keys that exist in the EvidenceSet.
// Invalid opinions are rejected at the core boundary, never coerced.
func (o *Opinion) Validate(ev EvidenceSet) error {
	if o.CriterionKey == "" {
		return fmt.Errorf("opinion missing criterion key")
	}
	if o.PersonaID == "" {
		return fmt.Errorf("opinion missing persona id")
	}
	if o.Score < ScoreMin || o.Score > ScoreMax {
		return fmt.Errorf("score %d out of range [%d,%d]", o.Score, ScoreMin, ScoreMax)
	}
	if o.Argument == "" {
		return fmt.Errorf("opinion has empty argument")
	}
	for _, key := range o.CitedEvidence {
		if _, ok := ev[key]; !ok {
			return fmt.Errorf("cited evidence %q not present in evidence set", key)
		}
	}
	return nil
}

// OpinionSet maps criterion key to the opinions accumulated for it. The merge
// is append-only set union, so fan-in order never affects content.
type OpinionSet map[string][]Opinion

// Add appends opinions under their criterion keys.
func (s OpinionSet) Add(ops ...Opinion) {
	for _, op := range ops {
		s[op.CriterionKey] = append(s[op.CriterionKey], op)
	}
}

// Count returns the total number of opinions across all criteria.
func (s OpinionSet) Count() int {
	n := 0
	for _, ops := range s {
		n += len(ops)
	}
	return n
}

// OverrideKind names a deterministic synthesis rule that replaced a computed
// score.
type OverrideKind string

const (
	OverrideSecurity      OverrideKind = "security_override"
	OverrideFactSupremacy OverrideKind = "fact_supremacy"
)

// CriterionResult is the reconciled outcome for one rubric criterion,
// produced exactly once by the synthesis engine.
type CriterionResult struct {
	CriterionKey    string       `json:"criterion_key"`
	Label           string       `json:"label"`
	FinalScore      float64      `json:"final_score"`
	OverrideApplied OverrideKind `json:"override_applied,omitempty"`
	DissentNote     string       `json:"dissent_note,omitempty"`
	Remediation     string       `json:"remediation,omitempty"`
	Charges         []string     `json:"charges,omitempty"`
	Opinions        []Opinion    `json:"opinions,omitempty"`
}

// Failure records a stage-local fault that was converted to state instead of
// propagating as an error.
type Failure struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Report is the top-level immutable audit artifact.
type Report struct {
	RunID              string            `json:"run_id"`
	RepoURL            string            `json:"repo_url"`
	AuditType          Type              `json:"audit_type"`
	OverallScore       float64           `json:"overall_score"`
	Percentage         float64           `json:"percentage"`
	Verdict            string            `json:"verdict"`
	Results            []CriterionResult `json:"results"`
	SecurityViolations int               `json:"security_violations"`
	Failures           []Failure         `json:"failures,omitempty"`
}
