package sqlgen

import (
	"fmt"
	"strings"

	"github.com/askdb-ai/askdb-engine/pkg/models"
)

const sqlSystemMessage = `You are a highly skilled, security-conscious PostgreSQL database administrator. You translate natural language questions into a single read-only SQL query.`

const sqlInstructions = `## Instructions:
- Generate exactly ONE SELECT statement. Never generate INSERT, UPDATE, DELETE, DDL, or multiple statements.
- Reject any question that asks to modify data; respond with <sql></sql> and explain why in <validation>.
- Never select all columns from a table; request only the columns the question needs.
- VERIFY that every table and column you reference exists in the provided schema.
- Use schema-qualified table names only if they appear that way in the schema.
- Write literal values inline with proper quoting; the query is executed exactly as written.
- Use NULLIF() when dividing to prevent division by zero.
- Use ILIKE or LOWER() for case-insensitive text comparisons.
- Include a LIMIT clause to prevent excessive data retrieval.
- Every non-aggregated column in the SELECT must appear in the GROUP BY clause.

## Response Format:
Respond with:
1. <sql>your SQL query</sql>
2. <validation>brief confirmation that every table and column exists in the schema</validation>`

// buildGeneratePrompt renders the first-attempt prompt: instructions, the
// retrieved schema context, and the question.
func buildGeneratePrompt(question string, fragments []models.SchemaFragment, maxContext int) string {
	var sb strings.Builder
	sb.WriteString(sqlInstructions)
	sb.WriteString("\n\n## Schema:\nA PostgreSQL database has the following tables and columns:\n\n")
	sb.WriteString(renderFragments(fragments, maxContext))
	fmt.Fprintf(&sb, "\n## Task:\nWrite a SQL query that best answers the following question:\n%s\n", question)
	return sb.String()
}

// buildRetryPrompt renders the second-attempt prompt after validation
// rejected the first statement.
func buildRetryPrompt(question string, fragments []models.SchemaFragment, maxContext int, rejectedSQL, reason string) string {
	var sb strings.Builder
	sb.WriteString(sqlInstructions)
	sb.WriteString("\n\n## Schema:\nA PostgreSQL database has the following tables and columns:\n\n")
	sb.WriteString(renderFragments(fragments, maxContext))
	fmt.Fprintf(&sb, "\n## Previous Attempt:\nYour previous query was rejected.\nQuery:\n%s\nRejection reason: %s\n", rejectedSQL, reason)
	fmt.Fprintf(&sb, "\n## Task:\nWrite a corrected SQL query that answers the following question:\n%s\n", question)
	return sb.String()
}

// buildRepairPrompt renders the regeneration prompt after the database
// rejected an accepted statement at execution time.
func buildRepairPrompt(question string, fragments []models.SchemaFragment, maxContext int, failedSQL, dbError string) string {
	var sb strings.Builder
	sb.WriteString(sqlInstructions)
	sb.WriteString("\n\n## Schema:\nA PostgreSQL database has the following tables and columns:\n\n")
	sb.WriteString(renderFragments(fragments, maxContext))
	fmt.Fprintf(&sb, "\n## Previous Attempt:\nThe following query failed when executed:\n%s\nDatabase error: %s\n", failedSQL, dbError)
	fmt.Fprintf(&sb, "\n## Task:\nWrite a corrected SQL query that answers the following question:\n%s\n", question)
	return sb.String()
}

// renderFragments concatenates fragment descriptions in retrieval order,
// stopping before maxContext bytes would be exceeded. The first fragment is
// always included; fragments are retrieved nearest first, so the dropped
// tail is the least relevant context. A maxContext of 0 disables the cap.
func renderFragments(fragments []models.SchemaFragment, maxContext int) string {
	var sb strings.Builder
	for i, f := range fragments {
		if maxContext > 0 && i > 0 && sb.Len()+len(f.Description)+1 > maxContext {
			break
		}
		sb.WriteString(f.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}
