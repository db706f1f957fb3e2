// Package service implements business logic on top of ports.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forensiq/tribunal/internal/adapter/otel"
	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/port/reportstore"
	"github.com/forensiq/tribunal/internal/render"
)

// Runner executes a full audit pipeline. Implemented by pipeline.Runner.
type Runner interface {
	Run(ctx context.Context, repoURL, docPath string, auditType audit.Type) (*audit.Report, error)
}

// AuditService drives audits end to end: run the pipeline, record metrics,
// persist the report, and render the markdown artifact. Persistence and
// rendering are best effort; only the pipeline itself can fail a run.
type AuditService struct {
	log      *slog.Logger
	runner   Runner
	store    reportstore.Store
	renderer *render.Renderer
	metrics  *otel.Metrics
}

// NewAuditService creates an AuditService. Store, renderer, and metrics are
// optional; nil disables the corresponding side effect.
func NewAuditService(log *slog.Logger, runner Runner, store reportstore.Store, renderer *render.Renderer, metrics *otel.Metrics) *AuditService {
	return &AuditService{
		log:      log,
		runner:   runner,
		store:    store,
		renderer: renderer,
		metrics:  metrics,
	}
}

// RunAudit runs one audit and returns the finished report. The report is
// persisted and rendered before returning; failures in either are logged
// and swallowed so a storage outage never loses a verdict.
func (s *AuditService) RunAudit(ctx context.Context, repoURL, docPath string, auditType audit.Type) (*audit.Report, error) {
	ctx, span := otel.StartAuditSpan(ctx, repoURL, string(auditType))
	defer span.End()

	start := time.Now()
	if s.metrics != nil {
		s.metrics.AuditsStarted.Add(ctx, 1)
	}

	rep, err := s.runner.Run(ctx, repoURL, docPath, auditType)
	if err != nil {
		if s.metrics != nil {
			s.metrics.AuditsAborted.Add(ctx, 1)
		}
		return nil, fmt.Errorf("run audit: %w", err)
	}

	otel.SetRunID(span, rep.RunID)
	if s.metrics != nil {
		s.metrics.AuditsCompleted.Add(ctx, 1)
		s.metrics.AuditDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.OverallScore.Record(ctx, rep.OverallScore)
		s.metrics.StageFailures.Add(ctx, int64(len(rep.Failures)))
		s.metrics.SecurityOverrides.Add(ctx, int64(rep.SecurityViolations))
	}

	if s.store != nil {
		if saveErr := s.store.Save(ctx, rep); saveErr != nil {
			s.log.Error("failed to persist audit report",
				"run_id", rep.RunID,
				"error", saveErr,
			)
		}
	}

	if s.renderer != nil {
		path, renderErr := s.renderer.Write(rep)
		if renderErr != nil {
			s.log.Error("failed to render audit report",
				"run_id", rep.RunID,
				"error", renderErr,
			)
		} else {
			s.log.Info("audit report written", "run_id", rep.RunID, "path", path)
		}
	}

	return rep, nil
}

// GetReport returns a stored report by run id.
func (s *AuditService) GetReport(ctx context.Context, runID string) (*audit.Report, error) {
	if s.store == nil {
		return nil, fmt.Errorf("report store not configured")
	}
	return s.store.Get(ctx, runID)
}

// ListReports returns recent report summaries, newest first.
func (s *AuditService) ListReports(ctx context.Context, limit int) ([]reportstore.Summary, error) {
	if s.store == nil {
		return nil, fmt.Errorf("report store not configured")
	}
	return s.store.List(ctx, limit)
}
