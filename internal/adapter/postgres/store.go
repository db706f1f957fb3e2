package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forensiq/tribunal/internal/domain"
	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/port/reportstore"
)

// Store implements reportstore.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Save persists a report and its criterion results in one transaction.
func (s *Store) Save(ctx context.Context, rep *audit.Report) error {
	failures, err := json.Marshal(orEmpty(rep.Failures))
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO audit_reports (run_id, repo_url, audit_type, overall_score, percentage, verdict, security_violations, failures)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rep.RunID, rep.RepoURL, string(rep.AuditType), rep.OverallScore,
		rep.Percentage, rep.Verdict, rep.SecurityViolations, failures)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert report: %w", err)
	}

	for i, res := range rep.Results {
		opinions, err := json.Marshal(orEmpty(res.Opinions))
		if err != nil {
			return fmt.Errorf("marshal opinions: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO criterion_results (run_id, position, criterion_key, label, final_score, override_applied, dissent_note, remediation, charges, opinions)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rep.RunID, i, res.CriterionKey, res.Label, res.FinalScore,
			string(res.OverrideApplied), res.DissentNote, res.Remediation,
			pgTextArray(res.Charges), opinions)
		if err != nil {
			return fmt.Errorf("insert criterion %s: %w", res.CriterionKey, err)
		}
	}

	return tx.Commit(ctx)
}

// Get returns one full report.
func (s *Store) Get(ctx context.Context, runID string) (*audit.Report, error) {
	var rep audit.Report
	var auditType string
	var failures []byte
	err := s.pool.QueryRow(ctx,
		`SELECT run_id, repo_url, audit_type, overall_score, percentage, verdict, security_violations, failures
		 FROM audit_reports WHERE run_id = $1`, runID).
		Scan(&rep.RunID, &rep.RepoURL, &auditType, &rep.OverallScore,
			&rep.Percentage, &rep.Verdict, &rep.SecurityViolations, &failures)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	rep.AuditType = audit.Type(auditType)
	if err := json.Unmarshal(failures, &rep.Failures); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT criterion_key, label, final_score, override_applied, dissent_note, remediation, charges, opinions
		 FROM criterion_results WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("get criteria: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res audit.CriterionResult
		var override string
		var opinions []byte
		if err := rows.Scan(&res.CriterionKey, &res.Label, &res.FinalScore,
			&override, &res.DissentNote, &res.Remediation, &res.Charges, &opinions); err != nil {
			return nil, fmt.Errorf("scan criterion: %w", err)
		}
		res.OverrideApplied = audit.OverrideKind(override)
		if err := json.Unmarshal(opinions, &res.Opinions); err != nil {
			return nil, fmt.Errorf("unmarshal opinions: %w", err)
		}
		rep.Results = append(rep.Results, res)
	}
	return &rep, rows.Err()
}

// List returns recent report summaries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]reportstore.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, repo_url, audit_type, overall_score, percentage, verdict, security_violations, created_at
		 FROM audit_reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	summaries := []reportstore.Summary{}
	for rows.Next() {
		var sum reportstore.Summary
		var auditType string
		var createdAt time.Time
		if err := rows.Scan(&sum.RunID, &sum.RepoURL, &auditType, &sum.OverallScore,
			&sum.Percentage, &sum.Verdict, &sum.SecurityViolations, &createdAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.AuditType = audit.Type(auditType)
		sum.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// orEmpty ensures JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// pgTextArray converts a string slice to a pgx-compatible text array.
// nil slices become empty arrays to avoid SQL NULL.
func pgTextArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
