// Package tools provides MCP tool implementations for askdb-engine.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/services"
)

type askResult struct {
	Answer    string `json:"answer"`
	SQL       string `json:"sql"`
	RowCount  int    `json:"row_count"`
	Truncated bool   `json:"truncated"`
	CacheHit  bool   `json:"cache_hit"`
	Degraded  bool   `json:"degraded"`
}

// RegisterAskTool adds the ask_database tool. It runs the full pipeline and
// returns the natural language answer alongside the SQL that produced it.
func RegisterAskTool(s *server.MCPServer, askService *services.AskService, logger *zap.Logger) {
	tool := mcp.NewTool(
		"ask_database",
		mcp.WithDescription(
			"Answers a natural language question about the connected database. "+
				"Generates a read-only SQL query from the question, executes it, and "+
				"returns a natural language answer plus the SQL used. "+
				"Example: ask_database(question='how many properties are listed in San Francisco?')",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question to answer, in plain language"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}

		question = strings.TrimSpace(question)
		if question == "" {
			return NewErrorResult("invalid_parameters", "question parameter cannot be empty"), nil
		}

		result, err := askService.Ask(ctx, question)
		if err != nil {
			kind := apperrors.KindOf(err)
			if kind == apperrors.KindInternal {
				logger.Error("ask_database tool failed", zap.Error(err))
				return nil, fmt.Errorf("ask failed: %w", err)
			}
			// Classified rejections go back to the model as actionable
			// errors; it can rephrase the question and retry.
			return NewErrorResult(string(kind), apperrors.UserMessage(err)), nil
		}

		payload := askResult{
			Answer:   result.Answer,
			SQL:      result.SQL,
			CacheHit: result.CacheHit,
			Degraded: result.Degraded,
		}
		if result.Result != nil {
			payload.RowCount = result.Result.RowCount
			payload.Truncated = result.Result.Truncated
		}

		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ask result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}
