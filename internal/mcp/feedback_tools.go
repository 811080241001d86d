package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scdaid-mcp-server/internal/feedback"
)

var errNoFeedbackStore = errors.New("feedback store is not configured")

// RecordFeedbackInput is the argument of record_plan_feedback
type RecordFeedbackInput struct {
	Fingerprint      string `json:"fingerprint" jsonschema:"plan fingerprint returned by recommend_analgesia"`
	SuggestedPrimary string `json:"suggested_primary" jsonschema:"primary therapy the plan suggested"`
	ChosenPrimary    string `json:"chosen_primary,omitempty" jsonschema:"primary therapy actually given; defaults to the suggestion"`
	Severity         string `json:"severity,omitempty"`
	OverallRisk      string `json:"overall_risk,omitempty"`
	Notes            string `json:"notes,omitempty" jsonschema:"free text; must not identify the patient"`
}

// ListFeedbackInput is the argument of list_plan_feedback
type ListFeedbackInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"maximum entries to return, default 20"`
	Offset int `json:"offset,omitempty"`
}

// ImportFeedbackInput is the argument of import_plan_feedback
type ImportFeedbackInput struct {
	FilePath string `json:"file_path" jsonschema:"path to a JSON file written by export_plan_feedback"`
}

// ExportFeedbackInput is the argument of export_plan_feedback. It has no fields.
type ExportFeedbackInput struct{}

func (s *Server) registerFeedbackTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "record_plan_feedback",
		Description: "Record whether the clinician kept the suggested primary therapy for a plan. Feedback for the same fingerprint is updated.",
	}, s.handleRecordFeedback)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_plan_feedback",
		Description: "List recorded feedback, newest first, with the overall agreement rate.",
	}, s.handleListFeedback)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_plan_feedback",
		Description: "Export all recorded feedback to a JSON file for backup.",
	}, s.handleExportFeedback)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "import_plan_feedback",
		Description: "Import feedback from a JSON backup file. Existing fingerprints are skipped.",
	}, s.handleImportFeedback)
}

func (s *Server) handleRecordFeedback(ctx context.Context, req *mcp.CallToolRequest, in RecordFeedbackInput) (*mcp.CallToolResult, any, error) {
	if s.feedback == nil {
		return s.createErrorResult("Feedback unavailable", errNoFeedbackStore), nil, nil
	}

	fb := &feedback.Feedback{
		PlanFingerprint:  in.Fingerprint,
		Severity:         in.Severity,
		OverallRisk:      in.OverallRisk,
		SuggestedPrimary: in.SuggestedPrimary,
		ChosenPrimary:    in.ChosenPrimary,
		Notes:            in.Notes,
	}
	if err := fb.Validate(); err != nil {
		return s.createErrorResult("fingerprint and suggested_primary are required", err), nil, nil
	}
	if err := s.feedback.Save(ctx, fb); err != nil {
		s.logger.WithError(err).Error("Failed to save feedback")
		return s.createErrorResult("Failed to save feedback", err), nil, nil
	}

	s.logger.WithField("fingerprint", fb.PlanFingerprint).Info("Feedback recorded")
	return s.createJSONResult(fb)
}

func (s *Server) handleListFeedback(ctx context.Context, req *mcp.CallToolRequest, in ListFeedbackInput) (*mcp.CallToolResult, any, error) {
	if s.feedback == nil {
		return s.createErrorResult("Feedback unavailable", errNoFeedbackStore), nil, nil
	}

	limit := in.Limit
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	offset := max(in.Offset, 0)

	entries, err := s.feedback.List(ctx, limit, offset)
	if err != nil {
		return s.createErrorResult("Failed to list feedback", err), nil, nil
	}
	summary, err := s.feedback.Summary(ctx)
	if err != nil {
		return s.createErrorResult("Failed to summarize feedback", err), nil, nil
	}

	return s.createJSONResult(map[string]any{
		"entries": entries,
		"summary": summary,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) handleExportFeedback(ctx context.Context, req *mcp.CallToolRequest, in ExportFeedbackInput) (*mcp.CallToolResult, any, error) {
	if s.feedback == nil {
		return s.createErrorResult("Feedback unavailable", errNoFeedbackStore), nil, nil
	}
	if s.opts.ExportDir == "" {
		return s.createErrorResult("Export unavailable", errors.New("no export directory configured")), nil, nil
	}

	if err := os.MkdirAll(s.opts.ExportDir, 0o755); err != nil {
		return s.createErrorResult("Failed to create export directory", err), nil, nil
	}

	filename := fmt.Sprintf("feedback_export_%s.json", time.Now().Format("20060102_150405"))
	filePath := filepath.Join(s.opts.ExportDir, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return s.createErrorResult("Failed to create export file", err), nil, nil
	}
	defer file.Close()

	if err := s.feedback.ExportJSON(ctx, file); err != nil {
		s.logger.WithError(err).Error("Failed to export feedback")
		return s.createErrorResult("Failed to export feedback", err), nil, nil
	}

	count, _ := s.feedback.Count(ctx)
	return s.createJSONResult(map[string]any{
		"success":   true,
		"file_path": filePath,
		"count":     count,
		"message":   fmt.Sprintf("Exported %d feedback entries to %s", count, filePath),
	})
}

func (s *Server) handleImportFeedback(ctx context.Context, req *mcp.CallToolRequest, in ImportFeedbackInput) (*mcp.CallToolResult, any, error) {
	if s.feedback == nil {
		return s.createErrorResult("Feedback unavailable", errNoFeedbackStore), nil, nil
	}
	if in.FilePath == "" {
		return s.createErrorResult("Missing required parameter", errors.New("file_path is required")), nil, nil
	}

	file, err := os.Open(in.FilePath)
	if err != nil {
		return s.createErrorResult("Failed to open import file", err), nil, nil
	}
	defer file.Close()

	imported, skipped, err := s.feedback.ImportJSON(ctx, file)
	if err != nil {
		s.logger.WithError(err).Error("Failed to import feedback")
		return s.createErrorResult("Failed to import feedback", err), nil, nil
	}

	return s.createJSONResult(map[string]any{
		"success":  true,
		"imported": imported,
		"skipped":  skipped,
		"message":  fmt.Sprintf("Imported %d entries, skipped %d duplicates", imported, skipped),
	})
}
