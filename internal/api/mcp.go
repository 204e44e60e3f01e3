package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/preceptor/internal/evaluation"
	"github.com/kalambet/preceptor/internal/grounding"
	"github.com/kalambet/preceptor/internal/history"
	"github.com/kalambet/preceptor/internal/matching"
	"github.com/kalambet/preceptor/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store       *storage.Store
	Evaluations *evaluation.Service
	Assignments *matching.Service
	Resolver    *grounding.Resolver
}

// NewMCPServer creates an MCP server with the preceptor tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"preceptor",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("preceptor — clinical-training evaluation scoring and practice-case personalization."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("create_evaluation",
			mcp.WithDescription("Generate and store a scored evaluation for a student."),
			mcp.WithString("student_id", mcp.Description("Student identifier"), mcp.Required()),
			mcp.WithString("case_type", mcp.Description("Case type the evaluation covers")),
			mcp.WithString("comments", mcp.Description("Evaluator comments")),
			mcp.WithString("focus_areas", mcp.Description("Semicolon-delimited focus areas")),
		),
		mcpCreateEvaluation(deps),
	)

	s.AddTool(
		mcp.NewTool("next_assignment",
			mcp.WithDescription("Match the next practice case and patient archetype for a student from their evaluation history."),
			mcp.WithString("student_id", mcp.Description("Student identifier"), mcp.Required()),
		),
		mcpNextAssignment(deps),
	)

	s.AddTool(
		mcp.NewTool("struggle_profile",
			mcp.WithDescription("Mine a student's recent evaluations into a diagnostic struggle profile."),
			mcp.WithString("student_id", mcp.Description("Student identifier"), mcp.Required()),
		),
		mcpStruggleProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("ground_content",
			mcp.WithDescription("Resolve reference passages for a query via the semantic/keyword/corpus fallback chain."),
			mcp.WithString("query", mcp.Description("Content query"), mcp.Required()),
		),
		mcpGroundContent(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"preceptor://roster",
			"Student Roster",
			mcp.WithResourceDescription("All known students with class standing"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRoster(deps),
	)

	return s
}

func mcpCreateEvaluation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		studentID, err := req.RequireString("student_id")
		if err != nil {
			return mcpError("student_id is required"), nil
		}

		record, result, err := deps.Evaluations.Create(evaluation.CreateParams{
			StudentID:  studentID,
			CaseType:   req.GetString("case_type", ""),
			Comments:   req.GetString("comments", ""),
			FocusAreas: req.GetString("focus_areas", ""),
		})
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("unknown student %q", studentID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("creating evaluation failed: %v", err)), nil
		}

		out := map[string]any{
			"id":                record.ID,
			"performance_level": record.PerformanceLevel,
			"competency_avg":    result.CompetencyAvg,
			"behavior_avg":      result.BehaviorAvg,
		}
		if result.BehaviorUndefined {
			out["behavior_undefined"] = true
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpNextAssignment(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		studentID, err := req.RequireString("student_id")
		if err != nil {
			return mcpError("student_id is required"), nil
		}

		assignment, err := deps.Assignments.NextAssignment(studentID)
		if err != nil {
			return mcpError(fmt.Sprintf("assignment failed: %v", err)), nil
		}

		b, err := json.Marshal(assignment)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal assignment: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpStruggleProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		studentID, err := req.RequireString("student_id")
		if err != nil {
			return mcpError("student_id is required"), nil
		}

		records, err := deps.Store.ListEvaluationsByStudent(studentID, 10)
		if err != nil {
			return mcpError(fmt.Sprintf("reading history failed: %v", err)), nil
		}

		b, err := json.Marshal(history.Mine(records))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGroundContent(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		passages, err := deps.Resolver.Resolve(ctx, query)
		if err != nil {
			// The exhaustion error already carries the query and per-provider
			// attempts; fabricating content here is forbidden.
			return mcpError(err.Error()), nil
		}

		b, err := json.Marshal(passages)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal passages: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRoster(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		students, err := deps.Store.ListStudents()
		if err != nil {
			return nil, fmt.Errorf("listing students: %w", err)
		}

		b, err := json.Marshal(students)
		if err != nil {
			return nil, fmt.Errorf("marshaling roster: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
