package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forensiq/tribunal/internal/adapter/litellm"
	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/port/reportstore"
	"github.com/forensiq/tribunal/internal/render"
)

const defaultListLimit = 20

// AuditService is the service surface the handlers delegate to.
type AuditService interface {
	RunAudit(ctx context.Context, repoURL, docPath string, auditType audit.Type) (*audit.Report, error)
	GetReport(ctx context.Context, runID string) (*audit.Report, error)
	ListReports(ctx context.Context, limit int) ([]reportstore.Summary, error)
}

// WSHandler serves the live event stream endpoint.
type WSHandler interface {
	HandleWS(w http.ResponseWriter, r *http.Request)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Audits  AuditService
	LiteLLM *litellm.Client
	Hub     WSHandler
	DB      *pgxpool.Pool
	Version string
}

type runAuditRequest struct {
	RepoURL   string `json:"repo_url"`
	DocPath   string `json:"doc_path"`
	AuditType string `json:"audit_type"`
}

// StartAudit runs a full audit and returns the finished report. The call
// blocks for the duration of the pipeline; clients wanting progress watch
// the /ws event stream instead.
func (h *Handlers) StartAudit(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[runAuditRequest](w, r)
	if !ok {
		return
	}
	if req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, "repo_url is required")
		return
	}
	if req.AuditType == "" {
		req.AuditType = string(audit.TypeSelf)
	}
	auditType, err := audit.ParseType(req.AuditType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.Audits.RunAudit(r.Context(), req.RepoURL, req.DocPath, auditType)
	if err != nil {
		writeDomainError(w, err, "audit failed")
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// GetAudit returns one stored report by run id.
func (h *Handlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	runID := urlParam(r, "id")
	rep, err := h.Audits.GetReport(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetAuditMarkdown returns the rendered markdown document for a report.
func (h *Handlers) GetAuditMarkdown(w http.ResponseWriter, r *http.Request) {
	runID := urlParam(r, "id")
	rep, err := h.Audits.GetReport(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err, "report not found")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(render.Markdown(rep)))
}

// ListAudits returns recent report summaries, newest first.
func (h *Handlers) ListAudits(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	summaries, err := h.Audits.ListReports(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err, "failed to list reports")
		return
	}
	if summaries == nil {
		summaries = []reportstore.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Health reports process liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.Version})
}

// HealthReady reports readiness of the backing services.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.LiteLLM != nil {
		if ok, err := h.LiteLLM.Health(r.Context()); !ok {
			checks["litellm"] = err.Error()
			healthy = false
		} else {
			checks["litellm"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, checks)
}

// HandleWS upgrades the connection and streams audit lifecycle events.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}
	h.Hub.HandleWS(w, r)
}
