package audit

import "fmt"

// State is the single record threaded through a run. Parallel branches never
// touch it directly: each branch returns a partial contribution and the graph
// runner applies the declared merge operator for each field at the barrier.
// That keeps every merge a pure, single-goroutine operation.
//
// Merge operators:
//   - Failures: append-concatenation (order insignificant downstream)
//   - Evidence: key-wise union, keep-first on cross-producer collision
//   - Opinions: append-only set union per criterion
//   - Report:   write-once
type State struct {
	RunID     string
	RepoURL   string
	DocPath   string
	AuditType Type

	Evidence EvidenceSet
	Opinions OpinionSet
	Failures []Failure
	Report   *Report
}

// NewState creates a run state with only input fields populated.
func NewState(runID, repoURL, docPath string, auditType Type) *State {
	return &State{
		RunID:     runID,
		RepoURL:   repoURL,
		DocPath:   docPath,
		AuditType: auditType,
		Evidence:  make(EvidenceSet),
		Opinions:  make(OpinionSet),
	}
}

// RecordFailure appends a stage-local fault to the failures list.
func (s *State) RecordFailure(stage string, err error) {
	if err == nil {
		return
	}
	s.Failures = append(s.Failures, Failure{Stage: stage, Error: err.Error()})
}

// MergeEvidence unions a producer's contribution into the evidence set.
// Detectives own disjoint criterion-key namespaces, so collisions indicate a
// defect: the first value is kept and a failure is recorded rather than
// clobbering or crashing.
func (s *State) MergeEvidence(contrib EvidenceSet) {
	for _, key := range contrib.Keys() {
		if existing, ok := s.Evidence[key]; ok {
			s.RecordFailure("merge", fmt.Errorf(
				"evidence key collision on %q: keeping first value (confidence %.2f), dropping duplicate",
				key, existing.Confidence))
			continue
		}
		s.Evidence[key] = contrib[key]
	}
}

// AppendOpinions unions a persona's opinions into the opinion set.
func (s *State) AppendOpinions(ops []Opinion) {
	s.Opinions.Add(ops...)
}

// SetReport installs the final report. The field is write-once: a second
// writer is a programming error, surfaced as a failure record and ignored so
// production runs degrade instead of crashing. Tests assert on the returned
// error.
func (s *State) SetReport(r *Report) error {
	if s.Report != nil {
		err := fmt.Errorf("report already set for run %s", s.RunID)
		s.RecordFailure("state", err)
		return err
	}
	s.Report = r
	return nil
}
