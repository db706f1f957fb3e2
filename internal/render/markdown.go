// Package render turns an audit report into its persisted markdown artifact.
// Rendering is pure: the same report always produces the same document, so
// the determinism of the synthesis stage survives to disk.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forensiq/tribunal/internal/domain/audit"
)

// Renderer writes reports under outputDir, one subdirectory per audit type.
type Renderer struct {
	outputDir string
}

// New builds a renderer rooted at outputDir.
func New(outputDir string) *Renderer {
	return &Renderer{outputDir: outputDir}
}

// Write renders the report and persists it to
// <outputDir>/<audit_type>/audit-<run_id>.md, returning the path.
func (r *Renderer) Write(rep *audit.Report) (string, error) {
	dir := filepath.Join(r.outputDir, string(rep.AuditType))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, "audit-"+rep.RunID+".md")
	if err := os.WriteFile(path, []byte(Markdown(rep)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Markdown renders the full report document.
func Markdown(rep *audit.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Forensic Audit Report\n\n")
	fmt.Fprintf(&b, "- **Run**: %s\n", rep.RunID)
	fmt.Fprintf(&b, "- **Repository**: %s\n", rep.RepoURL)
	fmt.Fprintf(&b, "- **Audit type**: %s\n", rep.AuditType)
	fmt.Fprintf(&b, "- **Verdict**: %s\n", rep.Verdict)
	fmt.Fprintf(&b, "- **Overall score**: %.2f / %d (%.2f%%)\n", rep.OverallScore, audit.ScoreMax, rep.Percentage)
	fmt.Fprintf(&b, "- **Security violations**: %d\n", rep.SecurityViolations)
	fmt.Fprintf(&b, "- **Stage failures**: %d\n\n", len(rep.Failures))

	b.WriteString("## Criteria\n\n")
	b.WriteString("| Criterion | Score | Override | Charges |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, res := range rep.Results {
		override := string(res.OverrideApplied)
		if override == "" {
			override = "-"
		}
		charges := strings.Join(res.Charges, ", ")
		if charges == "" {
			charges = "-"
		}
		fmt.Fprintf(&b, "| %s | %.2f | %s | %s |\n", res.Label, res.FinalScore, override, charges)
	}

	if notes := dissents(rep); notes != "" {
		b.WriteString("\n## Dissents\n\n")
		b.WriteString(notes)
	}

	if plan := remediation(rep); plan != "" {
		b.WriteString("\n## Remediation Plan\n\n")
		b.WriteString(plan)
	}

	b.WriteString("\n## Bench Opinions\n\n")
	for _, res := range rep.Results {
		fmt.Fprintf(&b, "### %s (%.2f)\n\n", res.Label, res.FinalScore)
		for _, op := range res.Opinions {
			fmt.Fprintf(&b, "- **%s** scored %d: %s\n", op.PersonaID, op.Score, op.Argument)
		}
		if len(res.Opinions) == 0 {
			b.WriteString("- no evaluable opinions\n")
		}
		b.WriteString("\n")
	}

	if len(rep.Failures) > 0 {
		b.WriteString("## Degradations\n\n")
		b.WriteString("This run completed with recorded stage failures; treat affected scores as low-confidence.\n\n")
		for _, f := range rep.Failures {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.Stage, f.Error)
		}
	}

	return b.String()
}

func dissents(rep *audit.Report) string {
	var b strings.Builder
	for _, res := range rep.Results {
		if res.DissentNote != "" {
			fmt.Fprintf(&b, "- **%s**: %s\n", res.Label, res.DissentNote)
		}
	}
	return b.String()
}

func remediation(rep *audit.Report) string {
	var b strings.Builder
	for _, res := range rep.Results {
		if res.Remediation != "" {
			fmt.Fprintf(&b, "1. **%s** (%.2f): %s\n", res.Label, res.FinalScore, res.Remediation)
		}
	}
	return b.String()
}
