// Package summarizer turns query results into natural language answers,
// with a tabular fallback when the model is unavailable.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/llm"
	"github.com/askdb-ai/askdb-engine/pkg/models"
)

const summarySystemMessage = `You are a very skilled database administrator who explains query results to non-technical users.`

// maxRowsInPrompt caps how much of the result is shown to the model;
// summaries of large results work from a representative prefix.
const maxRowsInPrompt = 50

// Summarizer renders execution results as prose.
type Summarizer struct {
	chat        llm.ChatClient
	temperature float64
	logger      *zap.Logger
}

// New creates a Summarizer.
func New(chat llm.ChatClient, temperature float64, logger *zap.Logger) *Summarizer {
	return &Summarizer{chat: chat, temperature: temperature, logger: logger}
}

// Summarize describes the result in natural language. When the model call
// fails the answer degrades to a tabular rendering instead of failing the
// request; degraded reports which path produced the answer.
func (s *Summarizer) Summarize(ctx context.Context, question, sqlQuery string, result *models.ExecutionResult) (answer string, degraded bool) {
	prompt := buildSummaryPrompt(question, sqlQuery, result)

	response, err := s.chat.GenerateResponse(ctx, prompt, summarySystemMessage, s.temperature)
	if err != nil || strings.TrimSpace(response) == "" {
		s.logger.Warn("summarization degraded to tabular rendering", zap.Error(err))
		return RenderTable(result), true
	}
	return strings.TrimSpace(response), false
}

// buildSummaryPrompt shows the model the rows, the query, and the question,
// and asks for prose only.
func buildSummaryPrompt(question, sqlQuery string, result *models.ExecutionResult) string {
	var sb strings.Builder
	sb.WriteString("The below rows were returned for the SQL query that follows:\n\n")
	sb.WriteString(renderRowsForPrompt(result))
	fmt.Fprintf(&sb, "\nQuery:\n%s\n", sqlQuery)
	fmt.Fprintf(&sb, "\nThe user asked: %s\n", question)
	if result.Truncated {
		fmt.Fprintf(&sb, "\nNote: the result was truncated at %d rows; mention that more rows exist.\n", result.RowCount)
	}
	sb.WriteString(`
Describe the results ONLY in natural language.
DO NOT describe the query, database schema, or any technical aspects of the underlying SQL database.
`)
	return sb.String()
}

func renderRowsForPrompt(result *models.ExecutionResult) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(result.Columns, " | "))
	sb.WriteString("\n")

	rows := result.Rows
	if len(rows) > maxRowsInPrompt {
		rows = rows[:maxRowsInPrompt]
	}
	for _, row := range rows {
		values := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			values[i] = formatValue(row[col])
		}
		sb.WriteString(strings.Join(values, " | "))
		sb.WriteString("\n")
	}
	if len(result.Rows) > maxRowsInPrompt {
		fmt.Fprintf(&sb, "... and %d more rows\n", len(result.Rows)-maxRowsInPrompt)
	}
	return sb.String()
}

// RenderTable renders the result as a plain text table. This is the degraded
// answer when no summary can be produced.
func RenderTable(result *models.ExecutionResult) string {
	if result.RowCount == 0 {
		return "The query returned no rows."
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(result.Columns, " | "))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", len(strings.Join(result.Columns, " | "))))
	sb.WriteString("\n")
	for _, row := range result.Rows {
		values := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			values[i] = formatValue(row[col])
		}
		sb.WriteString(strings.Join(values, " | "))
		sb.WriteString("\n")
	}
	if result.Truncated {
		fmt.Fprintf(&sb, "(truncated at %d rows)\n", result.RowCount)
	}
	return sb.String()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
