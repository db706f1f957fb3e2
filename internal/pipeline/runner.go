// Package pipeline wires the audit stages into the fixed two-stage
// fan-out/fan-in graph: three detectives in parallel, an aggregation
// barrier, three persona judges in parallel, then deterministic synthesis.
// The topology is static; a bespoke scheduler is clearer than a graph
// framework at this size.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forensiq/tribunal/internal/adapter/otel"
	"github.com/forensiq/tribunal/internal/config"
	"github.com/forensiq/tribunal/internal/detective"
	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/domain/rubric"
	"github.com/forensiq/tribunal/internal/judge"
	"github.com/forensiq/tribunal/internal/port/eventbus"
)

// Evaluator scores the full rubric under one persona. Satisfied by
// *judge.Evaluator; an interface so tests can script the bench.
type Evaluator interface {
	EvaluateAll(ctx context.Context, p judge.Persona, r *rubric.Rubric, ev audit.EvidenceSet) ([]audit.Opinion, []audit.Failure)
}

// Runner owns the execution and error-isolation contract of an audit run.
// Once a run starts, no stage fault escapes: everything degrades into the
// failures list and the run always ends with a structurally valid report.
type Runner struct {
	log        *slog.Logger
	cfg        config.Pipeline
	rubric     *rubric.Rubric
	detectives []detective.Producer
	evaluator  Evaluator
	personas   []judge.Persona
	engine     Synthesizer
	events     eventbus.Publisher
}

// Synthesizer is the deterministic reconciliation stage. Satisfied by
// *synthesis.Engine.
type Synthesizer interface {
	Synthesize(runID, repoURL string, auditType audit.Type, r *rubric.Rubric, ev audit.EvidenceSet, ops audit.OpinionSet, failures []audit.Failure) audit.Report
}

// New builds a Runner. Pass eventbus.Nop{} when no event bus is wired.
func New(log *slog.Logger, cfg config.Pipeline, r *rubric.Rubric, detectives []detective.Producer, evaluator Evaluator, personas []judge.Persona, engine Synthesizer, events eventbus.Publisher) *Runner {
	return &Runner{
		log:        log,
		cfg:        cfg,
		rubric:     r,
		detectives: detectives,
		evaluator:  evaluator,
		personas:   personas,
		engine:     engine,
		events:     events,
	}
}

// Run executes one audit. The returned error is non-nil only for the
// pre-execution abort case: malformed input or a misconfigured graph. After
// the first stage starts, the run always produces a report.
func (r *Runner) Run(ctx context.Context, repoURL, docPath string, auditType audit.Type) (*audit.Report, error) {
	if err := r.validate(repoURL, auditType); err != nil {
		return nil, err
	}

	state := audit.NewState(uuid.NewString(), repoURL, docPath, auditType)
	r.log.Info("audit run started",
		"run_id", state.RunID, "repo", repoURL, "audit_type", auditType)
	r.emit(ctx, state.RunID, eventbus.KindStarted, "", string(auditType))

	r.runDetectives(ctx, state)
	r.runJudges(ctx, state)
	r.runSynthesis(ctx, state)

	r.log.Info("audit run completed",
		"run_id", state.RunID,
		"overall", state.Report.OverallScore,
		"verdict", state.Report.Verdict,
		"failures", len(state.Report.Failures))
	r.emit(ctx, state.RunID, eventbus.KindCompleted, "", state.Report.Verdict)
	return state.Report, nil
}

// validate is the structural gate: the only faults that abort a run before
// any node executes.
func (r *Runner) validate(repoURL string, auditType audit.Type) error {
	if repoURL == "" {
		return fmt.Errorf("repo URL is required")
	}
	if _, err := audit.ParseType(string(auditType)); err != nil {
		return err
	}
	if r.rubric == nil {
		return fmt.Errorf("no rubric configured")
	}
	if err := r.rubric.Validate(); err != nil {
		return fmt.Errorf("rubric: %w", err)
	}
	if len(r.detectives) == 0 || r.evaluator == nil || len(r.personas) == 0 || r.engine == nil {
		return fmt.Errorf("pipeline graph is not fully wired")
	}
	return nil
}

// runDetectives is stage one: parallel evidence fan-out into the aggregation
// barrier. The merged set totally covers the rubric, placeholders included.
func (r *Runner) runDetectives(ctx context.Context, state *audit.State) {
	ctx, span := otel.StartStageSpan(ctx, state.RunID, "detectives")
	defer span.End()
	r.emit(ctx, state.RunID, eventbus.KindStage, "detectives", "")

	in := detective.Input{
		RunID:     state.RunID,
		RepoURL:   state.RepoURL,
		DocPath:   state.DocPath,
		AuditType: state.AuditType,
		Rubric:    r.rubric,
	}
	results := detective.RunAll(ctx, r.log, r.cfg.DetectiveTimeout, in, r.detectives...)

	evidence, failures := detective.Aggregate(r.rubric, results)
	state.MergeEvidence(evidence)
	state.Failures = append(state.Failures, failures...)

	r.emit(ctx, state.RunID, eventbus.KindStage, "evidence-aggregated",
		fmt.Sprintf("%d criteria, %d failures", len(state.Evidence), len(failures)))
}

// runJudges is stage two: the persona bench evaluates the merged evidence in
// parallel. Each branch returns its contribution; merges happen only here,
// after the barrier.
func (r *Runner) runJudges(ctx context.Context, state *audit.State) {
	ctx, span := otel.StartStageSpan(ctx, state.RunID, "judges")
	defer span.End()
	r.emit(ctx, state.RunID, eventbus.KindStage, "judges", "")

	jctx, cancel := context.WithTimeout(ctx, r.cfg.JudgeTimeout)
	defer cancel()

	type contribution struct {
		opinions []audit.Opinion
		failures []audit.Failure
	}
	contribs := make([]contribution, len(r.personas))

	var wg sync.WaitGroup
	for i, p := range r.personas {
		wg.Add(1)
		go func(i int, p judge.Persona) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					contribs[i] = contribution{failures: []audit.Failure{{
						Stage: "judge/" + p.ID,
						Error: fmt.Sprintf("persona panicked: %v", rec),
					}}}
				}
			}()
			ops, fails := r.evaluator.EvaluateAll(jctx, p, r.rubric, state.Evidence)
			contribs[i] = contribution{opinions: ops, failures: fails}
		}(i, p)
	}
	wg.Wait()

	for _, c := range contribs {
		state.AppendOpinions(c.opinions)
		state.Failures = append(state.Failures, c.failures...)
	}

	r.emit(ctx, state.RunID, eventbus.KindStage, "opinions-collected",
		fmt.Sprintf("%d opinions", state.Opinions.Count()))
}

// runSynthesis is the sequential tail: pure rule application, then the
// write-once report install.
func (r *Runner) runSynthesis(ctx context.Context, state *audit.State) {
	_, span := otel.StartStageSpan(ctx, state.RunID, "synthesis")
	defer span.End()

	report := r.engine.Synthesize(state.RunID, state.RepoURL, state.AuditType,
		r.rubric, state.Evidence, state.Opinions, state.Failures)
	if err := state.SetReport(&report); err != nil {
		// Unreachable in the fixed topology; recorded, not fatal.
		r.log.Error("report write conflict", "run_id", state.RunID, "error", err)
	}
}

func (r *Runner) emit(ctx context.Context, runID, kind, stage, detail string) {
	ev := eventbus.Event{
		RunID:  runID,
		Kind:   kind,
		Stage:  stage,
		Detail: detail,
		Time:   time.Now().UTC(),
	}
	if err := r.events.Publish(ctx, ev); err != nil {
		r.log.Warn("event publish failed", "run_id", runID, "kind", kind, "error", err)
	}
}
