package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// Request types for each tool

// DetectRequest represents the arguments for detect.
type DetectRequest struct {
	Root     string `json:"root"`
	PlanPath string `json:"plan_path,omitempty"`
	NoWrite  bool   `json:"no_write,omitempty"`
}

// InspectRequest represents the arguments for inspect.
type InspectRequest struct {
	PlanPath string `json:"plan_path"`
}

// ApplyRequest represents the arguments for apply.
type ApplyRequest struct {
	PlanPath       string `json:"plan_path"`
	SourceRoot     string `json:"source_root,omitempty"`
	QuarantineRoot string `json:"quarantine_root,omitempty"`
	Confirm        bool   `json:"confirm,omitempty"`
}

// ReportRequest represents the arguments for report.
type ReportRequest struct {
	PlanPath string `json:"plan_path,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	Format   string `json:"format,omitempty"`
}

// HistoryRequest represents the arguments for history.
type HistoryRequest struct {
	Kind   string `json:"kind,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// HandleDetect handles the detect tool call.
func (h *Handlers) HandleDetect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DetectRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Detect(ctx, h.db, h.cfg, ops.DetectInput{
		Root:     input.Root,
		PlanPath: input.PlanPath,
		NoWrite:  input.NoWrite,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInspect handles the inspect tool call.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Inspect(h.cfg, ops.InspectInput{PlanPath: input.PlanPath})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApply handles the apply tool call. Without confirm it is a dry run.
func (h *Handlers) HandleApply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApplyRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.PlanPath == "" {
		return errorResult(errors.NewInvalidRequest("plan_path is required")), nil
	}

	result, err := ops.Apply(ctx, h.db, h.cfg, ops.ApplyInput{
		PlanPath:       input.PlanPath,
		SourceRoot:     input.SourceRoot,
		QuarantineRoot: input.QuarantineRoot,
		DryRun:         !input.Confirm,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReport handles the report tool call.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Report(h.db, h.cfg, ops.ReportInput{
		PlanPath: input.PlanPath,
		RunID:    input.RunID,
		Format:   input.Format,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.History(h.db, ops.HistoryInput{
		Kind:   input.Kind,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.SweepError
	if stderrors.As(err, &sErr) {
		msg := sErr.Message
		if err != error(sErr) {
			// keep the wrapper context
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": msg,
			"status":  sErr.Status,
		}
		if sErr.Code != errors.ErrInternal && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
