// Package detective implements the evidence-producing stage of an audit run:
// three independent detectives inspect the repository, the report document,
// and the report's diagram images, each emitting typed evidence for the
// rubric criteria it owns. Detectives never see each other's output.
package detective

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/domain/rubric"
	"github.com/forensiq/tribunal/internal/prompt"
)

// Target artifact names used by rubric criteria to route them to a detective.
const (
	ArtifactRepo   = "github_repo"
	ArtifactDoc    = "report_document"
	ArtifactImages = "report_images"
)

// Input is the slice of run state a detective is allowed to see.
type Input struct {
	RunID     string
	RepoURL   string
	DocPath   string
	AuditType audit.Type
	Rubric    *rubric.Rubric
}

// Producer is the uniform detective contract: one call per run, returning
// either an evidence contribution or an error. A producer must not emit
// evidence for criteria outside its artifact namespace.
type Producer interface {
	Name() string
	Produce(ctx context.Context, in Input) (audit.EvidenceSet, error)
}

// Result is one detective's outcome after the harness has applied timeout
// and panic isolation.
type Result struct {
	Name     string
	Evidence audit.EvidenceSet
	Err      error
}

// RunAll fans the detectives out in parallel and waits for all of them.
// Every fault (error return, panic, or timeout) is captured in the Result
// so the barrier always completes; a hung producer is abandoned rather than
// allowed to stall the run.
func RunAll(ctx context.Context, log *slog.Logger, timeout time.Duration, in Input, producers ...Producer) []Result {
	results := make([]Result, len(producers))
	var wg sync.WaitGroup
	for i, p := range producers {
		wg.Add(1)
		go func(i int, p Producer) {
			defer wg.Done()
			results[i] = runOne(ctx, log, timeout, in, p)
		}(i, p)
	}
	wg.Wait()
	return results
}

func runOne(ctx context.Context, log *slog.Logger, timeout time.Duration, in Input, p Producer) Result {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		ev  audit.EvidenceSet
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("detective %s panicked: %v", p.Name(), r)}
			}
		}()
		ev, err := p.Produce(pctx, in)
		done <- outcome{ev: ev, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			log.Warn("detective failed", "detective", p.Name(), "run_id", in.RunID, "error", out.err)
			return Result{Name: p.Name(), Err: out.err}
		}
		log.Debug("detective finished", "detective", p.Name(), "run_id", in.RunID, "evidence", len(out.ev))
		return Result{Name: p.Name(), Evidence: out.ev}
	case <-pctx.Done():
		log.Warn("detective timed out", "detective", p.Name(), "run_id", in.RunID, "timeout", timeout)
		return Result{Name: p.Name(), Err: fmt.Errorf("detective %s timed out after %s", p.Name(), timeout)}
	}
}

// evidenceItem is the wire schema detectives ask the LLM to emit.
type evidenceItem struct {
	CriterionKey  string   `json:"criterion_key"`
	Summary       string   `json:"summary"`
	Confidence    float64  `json:"confidence"`
	CitedLocators []string `json:"cited_locators"`
}

type evidenceEnvelope struct {
	Evidence []evidenceItem `json:"evidence"`
}

// parseEvidence decodes LLM output into evidence entries, dropping items for
// criteria outside the producer's namespace and clamping confidence to [0,1].
func parseEvidence(content string, owned map[string]bool) (audit.EvidenceSet, error) {
	var env evidenceEnvelope
	if err := json.Unmarshal([]byte(prompt.ExtractJSON(content)), &env); err != nil {
		return nil, fmt.Errorf("parse evidence output: %w", err)
	}

	set := make(audit.EvidenceSet)
	for _, item := range env.Evidence {
		if !owned[item.CriterionKey] {
			continue
		}
		if item.Summary == "" {
			continue
		}
		conf := item.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		set[item.CriterionKey] = audit.Evidence{
			CriterionKey: item.CriterionKey,
			Summary:      item.Summary,
			Confidence:   conf,
			Locators:     item.CitedLocators,
		}
	}
	return set, nil
}

// ownedKeys returns the criterion keys bound to the given target artifact.
func ownedKeys(r *rubric.Rubric, artifact string) map[string]bool {
	owned := make(map[string]bool)
	for _, c := range r.Criteria {
		if c.TargetArtifact == artifact {
			owned[c.Key] = true
		}
	}
	return owned
}

// criteriaBlock renders the owned criteria as prompt context.
func criteriaBlock(r *rubric.Rubric, artifact string) string {
	var b []byte
	for _, c := range r.Criteria {
		if c.TargetArtifact != artifact {
			continue
		}
		b = append(b, fmt.Sprintf("- %s: %s: %s\n", c.Key, c.Label, c.Description)...)
	}
	return string(b)
}
