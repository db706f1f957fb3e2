package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tribunal"

// Metrics holds the audit pipeline metric instruments.
type Metrics struct {
	AuditsStarted     metric.Int64Counter
	AuditsCompleted   metric.Int64Counter
	AuditsAborted     metric.Int64Counter
	StageFailures     metric.Int64Counter
	SecurityOverrides metric.Int64Counter
	AuditDuration     metric.Float64Histogram
	OverallScore      metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.AuditsStarted, err = meter.Int64Counter("tribunal.audits.started",
		metric.WithDescription("Number of audit runs started"))
	if err != nil {
		return nil, err
	}

	m.AuditsCompleted, err = meter.Int64Counter("tribunal.audits.completed",
		metric.WithDescription("Number of audit runs completed"))
	if err != nil {
		return nil, err
	}

	m.AuditsAborted, err = meter.Int64Counter("tribunal.audits.aborted",
		metric.WithDescription("Number of audit runs aborted before execution"))
	if err != nil {
		return nil, err
	}

	m.StageFailures, err = meter.Int64Counter("tribunal.stage.failures",
		metric.WithDescription("Number of recorded stage failures"))
	if err != nil {
		return nil, err
	}

	m.SecurityOverrides, err = meter.Int64Counter("tribunal.security.overrides",
		metric.WithDescription("Number of criteria forced to minimum by the security override"))
	if err != nil {
		return nil, err
	}

	m.AuditDuration, err = meter.Float64Histogram("tribunal.audit.duration_seconds",
		metric.WithDescription("Audit run duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.OverallScore, err = meter.Float64Histogram("tribunal.audit.overall_score",
		metric.WithDescription("Final overall score per audit run"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
