package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/services"
)

type indexResult struct {
	Namespace     string `json:"namespace"`
	TableCount    int    `json:"table_count"`
	FragmentCount int    `json:"fragment_count"`
	DurationMs    int64  `json:"duration_ms"`
}

// RegisterIndexTool adds the refresh_schema_index tool. It rebuilds the
// schema fragment index from the live database and clears the answer cache.
func RegisterIndexTool(s *server.MCPServer, indexService *services.IndexService, logger *zap.Logger) {
	tool := mcp.NewTool(
		"refresh_schema_index",
		mcp.WithDescription(
			"Rebuilds the schema index used to ground SQL generation. Run this "+
				"after the database schema changes so answers reflect the current "+
				"tables and columns. Also clears the semantic answer cache.",
		),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report, err := indexService.Reindex(ctx)
		if err != nil {
			logger.Error("refresh_schema_index tool failed", zap.Error(err))
			return nil, fmt.Errorf("reindex failed: %w", err)
		}

		jsonBytes, err := json.Marshal(indexResult{
			Namespace:     report.Namespace,
			TableCount:    report.TableCount,
			FragmentCount: report.FragmentCount,
			DurationMs:    report.DurationMillis,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal index result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}
