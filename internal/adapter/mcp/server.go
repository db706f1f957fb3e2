// Package mcp exposes the audit tribunal over the Model Context Protocol so
// agent frontends can start audits and read verdicts as tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/port/reportstore"
)

// Auditor runs a full audit and returns the finished report.
type Auditor interface {
	RunAudit(ctx context.Context, repoURL, docPath string, auditType audit.Type) (*audit.Report, error)
}

// ReportReader retrieves stored reports.
type ReportReader interface {
	GetReport(ctx context.Context, runID string) (*audit.Report, error)
	ListReports(ctx context.Context, limit int) ([]reportstore.Summary, error)
}

// ServerConfig holds MCP server settings. An empty APIKey leaves the
// endpoint unauthenticated.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// ServerDeps carries the services the tools delegate to. Nil fields turn
// the corresponding tools into error responders instead of panicking.
type ServerDeps struct {
	Auditor Auditor
	Reports ReportReader
	Log     *slog.Logger
}

// Server wraps an MCP server with its HTTP transport.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	web       *http.Server
}

// NewServer creates the MCP server and registers the audit tools.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves MCP over streamable HTTP on the configured address, behind
// API key auth when one is configured. It does not block; Stop shuts the
// listener down.
func (s *Server) Start() error {
	stream := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	s.web = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           AuthMiddleware(s.cfg.APIKey, stream),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Log.Error("mcp server stopped", "error", err)
		}
	}()
	s.deps.Log.Info("mcp server listening", "addr", s.cfg.Addr, "auth", s.cfg.APIKey != "")
	return nil
}

// Stop gracefully shuts down the MCP HTTP transport.
func (s *Server) Stop(ctx context.Context) error {
	if s.web == nil {
		return nil
	}
	if err := s.web.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown mcp server: %w", err)
	}
	return nil
}
