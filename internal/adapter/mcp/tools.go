package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/forensiq/tribunal/internal/domain/audit"
)

const defaultListLimit = 20

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.runAuditTool(),
		s.getReportTool(),
		s.listReportsTool(),
	)
}

func (s *Server) runAuditTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("run_audit",
		mcplib.WithDescription("Run a full forensic code-quality audit against a repository and its report document. Blocks until the verdict is ready."),
		mcplib.WithString("repo_url",
			mcplib.Required(),
			mcplib.Description("Clone URL of the repository under audit"),
		),
		mcplib.WithString("doc_path",
			mcplib.Description("Path to the report document that accompanies the repository"),
		),
		mcplib.WithString("audit_type",
			mcplib.Description("Audit perspective: self, peer, or received (default self)"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleRunAudit,
	}
}

func (s *Server) getReportTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_report",
		mcplib.WithDescription("Get a finished audit report by run ID"),
		mcplib.WithString("run_id",
			mcplib.Required(),
			mcplib.Description("The audit run ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetReport,
	}
}

func (s *Server) listReportsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_reports",
		mcplib.WithDescription("List recent audit report summaries, newest first"),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of summaries to return (default 20)"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListReports,
	}
}

func (s *Server) handleRunAudit(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Auditor == nil {
		return mcplib.NewToolResultError("auditor not configured"), nil
	}
	args := req.GetArguments()
	repoURL, ok := args["repo_url"].(string)
	if !ok || repoURL == "" {
		return mcplib.NewToolResultError("repo_url is required"), nil
	}
	docPath, _ := args["doc_path"].(string)

	rawType, _ := args["audit_type"].(string)
	if rawType == "" {
		rawType = string(audit.TypeSelf)
	}
	auditType, err := audit.ParseType(rawType)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid audit_type", err), nil
	}

	rep, err := s.deps.Auditor.RunAudit(ctx, repoURL, docPath, auditType)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("audit failed", err), nil
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal report", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetReport(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reports == nil {
		return mcplib.NewToolResultError("report reader not configured"), nil
	}
	args := req.GetArguments()
	runID, ok := args["run_id"].(string)
	if !ok || runID == "" {
		return mcplib.NewToolResultError("run_id is required"), nil
	}
	rep, err := s.deps.Reports.GetReport(ctx, runID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get report %s", runID), err,
		), nil
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal report", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleListReports(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reports == nil {
		return mcplib.NewToolResultError("report reader not configured"), nil
	}
	limit := defaultListLimit
	if raw, ok := req.GetArguments()["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
	}
	summaries, err := s.deps.Reports.ListReports(ctx, limit)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list reports", err), nil
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal summaries", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
