package main

import (
	"fmt"
	"log/slog"

	"github.com/forensiq/tribunal/internal/config"
	"github.com/forensiq/tribunal/internal/detective"
	"github.com/forensiq/tribunal/internal/domain/rubric"
	"github.com/forensiq/tribunal/internal/git"
	"github.com/forensiq/tribunal/internal/judge"
	"github.com/forensiq/tribunal/internal/pipeline"
	"github.com/forensiq/tribunal/internal/port/eventbus"
	"github.com/forensiq/tribunal/internal/port/llm"
	"github.com/forensiq/tribunal/internal/resilience"
	"github.com/forensiq/tribunal/internal/synthesis"
)

// buildRunner assembles the fixed audit graph: three detectives fanning in
// to an aggregation barrier, three bench personas fanning in to synthesis.
func buildRunner(cfg *config.Config, log *slog.Logger, client llm.Client, events eventbus.Publisher) (*pipeline.Runner, error) {
	r, err := rubric.Load(cfg.Rubric.Path)
	if err != nil {
		return nil, fmt.Errorf("rubric: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("rubric: %w", err)
	}

	gitPool := git.NewPool(cfg.Git.MaxConcurrent)

	detectives := []detective.Producer{
		detective.NewRepoInvestigator(gitPool, client, log, cfg.Git, cfg.LiteLLM.Model),
		detective.NewDocAnalyst(gitPool, client, log, cfg.Git, cfg.LiteLLM.Model),
		detective.NewVisionInspector(client, log, cfg.LiteLLM.VisionModel),
	}

	evaluator := judge.NewEvaluator(client, log, cfg.LiteLLM.Model, cfg.Pipeline.OpinionRetries)

	engine := synthesis.NewEngine(synthesis.Config{
		CriticalCharges:   cfg.Pipeline.CriticalCharges,
		FactCapScore:      cfg.Pipeline.FactCapScore,
		VarianceThreshold: cfg.Pipeline.VarianceThreshold,
		DissentBlend:      cfg.Pipeline.DissentBlend,
	})

	return pipeline.New(log, cfg.Pipeline, r, detectives, evaluator, judge.Personas(), engine, events), nil
}

func newBreaker(cfg *config.Config) *resilience.Breaker {
	return resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
}
