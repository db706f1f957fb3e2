// Package reportstore defines the port for persisting finished audit
// reports. Persistence is outside the run lifecycle: a failed save never
// fails the audit.
package reportstore

import (
	"context"

	"github.com/forensiq/tribunal/internal/domain/audit"
)

// Summary is a report without its per-criterion detail, for listings.
type Summary struct {
	RunID              string     `json:"run_id"`
	RepoURL            string     `json:"repo_url"`
	AuditType          audit.Type `json:"audit_type"`
	OverallScore       float64    `json:"overall_score"`
	Percentage         float64    `json:"percentage"`
	Verdict            string     `json:"verdict"`
	SecurityViolations int        `json:"security_violations"`
	CreatedAt          string     `json:"created_at"`
}

// Store persists and retrieves audit reports.
type Store interface {
	// Save persists a finished report. Returns domain.ErrConflict when the
	// run id already exists.
	Save(ctx context.Context, rep *audit.Report) error
	// Get returns one full report, or domain.ErrNotFound.
	Get(ctx context.Context, runID string) (*audit.Report, error)
	// List returns recent report summaries, newest first.
	List(ctx context.Context, limit int) ([]Summary, error)
}
