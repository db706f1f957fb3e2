package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/forensiq/tribunal/internal/adapter/litellm"
	"github.com/forensiq/tribunal/internal/adapter/llmcache"
	"github.com/forensiq/tribunal/internal/adapter/ristretto"
	"github.com/forensiq/tribunal/internal/config"
	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/logger"
	"github.com/forensiq/tribunal/internal/port/eventbus"
	"github.com/forensiq/tribunal/internal/render"
	"github.com/forensiq/tribunal/internal/service"
)

// runOnce executes a single audit without the server: no postgres, no NATS,
// just the pipeline and a rendered markdown report.
func runOnce(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	repo := fs.String("repo", "", "clone URL of the repository under audit (required)")
	doc := fs.String("doc", "", "path to the accompanying report document")
	typ := fs.String("type", "self", "audit type: self, peer, or received")
	out := fs.String("out", "", "output directory for the rendered report (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *repo == "" {
		return fmt.Errorf("--repo is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if *out != "" {
		cfg.Pipeline.OutputDir = *out
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	auditType, err := audit.ParseType(*typ)
	if err != nil {
		return err
	}

	llmClient := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
	llmClient.SetBreaker(newBreaker(cfg))

	// In-process cache only; the shared NATS layer needs the server.
	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	cachedLLM := llmcache.New(llmClient, l1, cfg.Cache.TTL, log)

	runner, err := buildRunner(cfg, log, cachedLLM, eventbus.Nop{})
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	svc := service.NewAuditService(log, runner, nil, render.New(cfg.Pipeline.OutputDir), nil)

	rep, err := svc.RunAudit(context.Background(), *repo, *doc, auditType)
	if err != nil {
		return err
	}

	printReport(rep)
	return nil
}

func printReport(rep *audit.Report) {
	fmt.Printf("Run:     %s\n", rep.RunID)
	fmt.Printf("Verdict: %s\n", rep.Verdict)
	fmt.Printf("Overall: %.2f / 5 (%.1f%%)\n", rep.OverallScore, rep.Percentage)
	if rep.SecurityViolations > 0 {
		fmt.Printf("Security violations: %d\n", rep.SecurityViolations)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CRITERION\tSCORE\tOVERRIDE\tCHARGES")
	for i := range rep.Results {
		res := &rep.Results[i]
		override := string(res.OverrideApplied)
		if override == "" {
			override = "-"
		}
		charges := "-"
		if len(res.Charges) > 0 {
			charges = fmt.Sprintf("%v", res.Charges)
		}
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", res.Label, res.FinalScore, override, charges)
	}
	_ = w.Flush()

	if len(rep.Failures) > 0 {
		fmt.Printf("\nDegraded stages: %d (see report for detail)\n", len(rep.Failures))
	}
}
