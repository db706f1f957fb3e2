package detective

import (
	"fmt"

	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/domain/rubric"
)

// Aggregate is the evidence barrier: it merges the detectives' contributions
// into one EvidenceSet with key-wise union and guarantees total coverage of
// the rubric by filling an explicit placeholder for every criterion no
// detective reached. Cross-detective key collisions should not occur because
// each detective owns a disjoint artifact namespace; when one does, the first
// value is kept and the defect is recorded as a failure. Aggregate never
// fails: even with every detective down it emits an all-placeholder set.
func Aggregate(r *rubric.Rubric, results []Result) (audit.EvidenceSet, []audit.Failure) {
	merged := make(audit.EvidenceSet)
	var failures []audit.Failure

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			failures = append(failures, audit.Failure{
				Stage: "detective/" + res.Name,
				Error: res.Err.Error(),
			})
			continue
		}
		for _, key := range res.Evidence.Keys() {
			if _, exists := merged[key]; exists {
				failures = append(failures, audit.Failure{
					Stage: "aggregate",
					Error: fmt.Sprintf("evidence key collision on %q from detective %s, kept first value", key, res.Name),
				})
				continue
			}
			merged[key] = res.Evidence[key]
		}
	}

	for _, key := range r.Keys() {
		if _, exists := merged[key]; !exists {
			merged[key] = audit.Placeholder(key)
		}
	}

	if len(results) > 0 && failed == len(results) {
		failures = append(failures, audit.Failure{
			Stage: "aggregate",
			Error: "all detectives failed, proceeding on placeholder evidence only",
		})
	}

	return merged, failures
}
