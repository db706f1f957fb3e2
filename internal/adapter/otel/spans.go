package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tribunal"

// StartAuditSpan starts a span covering a whole audit run. The run id is not
// known until the pipeline assigns it; attach it with SetRunID.
func StartAuditSpan(ctx context.Context, repoURL, auditType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "audit",
		trace.WithAttributes(
			attribute.String("audit.repo_url", repoURL),
			attribute.String("audit.type", auditType),
		),
	)
}

// SetRunID attaches the assigned run id to an audit span.
func SetRunID(span trace.Span, runID string) {
	span.SetAttributes(attribute.String("audit.run_id", runID))
}

// StartStageSpan starts a span for one pipeline stage within a run.
func StartStageSpan(ctx context.Context, runID, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "stage",
		trace.WithAttributes(
			attribute.String("audit.run_id", runID),
			attribute.String("audit.stage", stage),
		),
	)
}
