package sqlgen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/llm"
	"github.com/askdb-ai/askdb-engine/pkg/models"
)

func listingsFragments() []models.SchemaFragment {
	return []models.SchemaFragment{
		{
			Table: "properties",
			Description: "Table: properties (Schema: public)\nColumns:\n" +
				"- id (integer, NOT NULL) [PRIMARY KEY]\n" +
				"- city (text, NULL)\n" +
				"- price (numeric, NULL)\n" +
				"- bedrooms (integer, NULL)\n",
		},
		{
			Table:       "properties",
			Column:      "city",
			Description: "Column: properties.city (text)\nSample values: Oakland, San Francisco\n",
		},
	}
}

func newTestGenerator(chat *llm.MockChatClient) *Generator {
	return NewGenerator(chat, DefaultConfig(), zap.NewNop())
}

func TestGenerator_Generate(t *testing.T) {
	chat := &llm.MockChatClient{
		GenerateResponseFunc: func(context.Context, string, string, float64) (string, error) {
			return "<sql>SELECT city, price FROM properties WHERE city = 'San Francisco' ORDER BY price DESC LIMIT 10;</sql>\n<validation>all columns exist</validation>", nil
		},
	}

	query, err := newTestGenerator(chat).Generate(context.Background(), "top homes in SF", listingsFragments())
	require.NoError(t, err)
	assert.Equal(t, models.VerdictAccepted, query.Verdict)
	// Trailing semicolon is stripped during normalization.
	assert.Equal(t, "SELECT city, price FROM properties WHERE city = 'San Francisco' ORDER BY price DESC LIMIT 10", query.SQL)
	assert.Len(t, query.Fragments, 2)
	assert.Equal(t, 1, chat.GenerateResponseCalls)
}

func TestGenerator_RetryFixesHallucinatedColumn(t *testing.T) {
	responses := []string{
		"<sql>SELECT sqft FROM properties</sql>",
		"<sql>SELECT city, price FROM properties LIMIT 10</sql>",
	}
	call := 0
	chat := &llm.MockChatClient{
		GenerateResponseFunc: func(context.Context, string, string, float64) (string, error) {
			resp := responses[call]
			call++
			return resp, nil
		},
	}

	query, err := newTestGenerator(chat).Generate(context.Background(), "how big are the homes", listingsFragments())
	require.NoError(t, err)
	assert.Equal(t, models.VerdictAccepted, query.Verdict)
	assert.Equal(t, 2, chat.GenerateResponseCalls)

	// The retry prompt carries the rejection reason.
	require.Len(t, chat.Prompts, 2)
	assert.Contains(t, chat.Prompts[1], "sqft")
	assert.Contains(t, chat.Prompts[1], "Rejection reason")
}

func TestGenerator_RejectsAfterRetry(t *testing.T) {
	chat := &llm.MockChatClient{
		GenerateResponseFunc: func(context.Context, string, string, float64) (string, error) {
			return "<sql>DELETE FROM properties</sql>", nil
		},
	}

	query, err := newTestGenerator(chat).Generate(context.Background(), "remove everything", listingsFragments())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindGenerationRejected, apperrors.KindOf(err))
	assert.Equal(t, models.VerdictRejected, query.Verdict)
	assert.NotEmpty(t, query.Reason)
	assert.Equal(t, 2, chat.GenerateResponseCalls)
}

func TestGenerator_RejectsMultipleStatements(t *testing.T) {
	chat := &llm.MockChatClient{
		GenerateResponseFunc: func(context.Context, string, string, float64) (string, error) {
			return "<sql>SELECT city FROM properties; DROP TABLE properties</sql>", nil
		},
	}

	_, err := newTestGenerator(chat).Generate(context.Background(), "list cities", listingsFragments())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindGenerationRejected, apperrors.KindOf(err))
}

func TestGenerator_RejectsInjectionLiteral(t *testing.T) {
	chat := &llm.MockChatClient{
		GenerateResponseFunc: func(context.Context, string, string, float64) (string, error) {
			return "<sql>SELECT city FROM properties WHERE city = '1'' OR ''1''=''1'</sql>", nil
		},
	}

	query, err := newTestGenerator(chat).Generate(context.Background(), "cities", listingsFragments())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindGenerationRejected, apperrors.KindOf(err))
	assert.Contains(t, query.Reason, "injection")
}

func TestGenerator_NoSQLInResponse(t *testing.T) {
	chat := &llm.MockChatClient{
		GenerateResponseFunc: func(context.Context, string, string, float64) (string, error) {
			return "I cannot answer that question.", nil
		},
	}

	query, err := newTestGenerator(chat).Generate(context.Background(), "hello", listingsFragments())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindGenerationRejected, apperrors.KindOf(err))
	assert.Equal(t, models.VerdictRejected, query.Verdict)
}

func TestGenerator_ProviderFailure(t *testing.T) {
	chat := &llm.MockChatClient{
		GenerateResponseFunc: func(context.Context, string, string, float64) (string, error) {
			return "", errors.New("connection refused")
		},
	}

	_, err := newTestGenerator(chat).Generate(context.Background(), "cities", listingsFragments())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestGenerator_Repair(t *testing.T) {
	chat := &llm.MockChatClient{
		GenerateResponseFunc: func(context.Context, string, string, float64) (string, error) {
			return "<sql>SELECT city, avg(price) FROM properties GROUP BY city</sql>", nil
		},
	}

	query, err := newTestGenerator(chat).Repair(context.Background(), "average price per city",
		listingsFragments(), "SELECT city, avg(price) FROM properties", "column \"city\" must appear in the GROUP BY clause")
	require.NoError(t, err)
	assert.Equal(t, models.VerdictAccepted, query.Verdict)

	require.Len(t, chat.Prompts, 1)
	assert.Contains(t, chat.Prompts[0], "GROUP BY clause")
	assert.Contains(t, chat.Prompts[0], "failed when executed")
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected string
	}{
		{
			name:     "sql tag",
			response: "here you go\n<sql>SELECT 1</sql>\ndone",
			expected: "SELECT 1",
		},
		{
			name:     "multiline sql tag",
			response: "<sql>\nSELECT city\nFROM properties\n</sql>",
			expected: "SELECT city\nFROM properties",
		},
		{
			name:     "fenced block fallback",
			response: "```sql\nSELECT 1\n```",
			expected: "SELECT 1",
		},
		{
			name:     "bare fence fallback",
			response: "```\nSELECT 1\n```",
			expected: "SELECT 1",
		},
		{
			name:     "tag preferred over fence",
			response: "<sql>SELECT 1</sql>\n```sql\nSELECT 2\n```",
			expected: "SELECT 1",
		},
		{
			name:     "no sql",
			response: "I cannot help with that.",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractSQL(tt.response))
		})
	}
}

func TestAllowedIdentifiers(t *testing.T) {
	allowed := AllowedIdentifiers(listingsFragments())

	assert.Contains(t, allowed, "properties")
	assert.Contains(t, allowed, "city")
	assert.Contains(t, allowed, "price")
	assert.Contains(t, allowed, "bedrooms")
	assert.Contains(t, allowed, "id")

	// Duplicates collapse: "city" appears as both a column line and a
	// column fragment.
	count := 0
	for _, name := range allowed {
		if name == "city" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRenderFragments_BoundedByContextLength(t *testing.T) {
	fragments := []models.SchemaFragment{
		{Table: "properties", Description: strings.Repeat("a", 40)},
		{Table: "agents", Description: strings.Repeat("b", 40)},
		{Table: "sales", Description: strings.Repeat("c", 40)},
	}

	rendered := renderFragments(fragments, 90)
	assert.Contains(t, rendered, strings.Repeat("a", 40))
	assert.Contains(t, rendered, strings.Repeat("b", 40))
	assert.NotContains(t, rendered, "c")

	// The nearest fragment survives even when it alone exceeds the cap.
	rendered = renderFragments(fragments, 10)
	assert.Contains(t, rendered, strings.Repeat("a", 40))
	assert.NotContains(t, rendered, "b")

	// Zero disables the cap.
	rendered = renderFragments(fragments, 0)
	assert.Contains(t, rendered, strings.Repeat("c", 40))
}

func TestGenerator_PromptContextBounded(t *testing.T) {
	var captured string
	chat := &llm.MockChatClient{
		GenerateResponseFunc: func(_ context.Context, prompt, _ string, _ float64) (string, error) {
			captured = prompt
			return "<sql>SELECT city FROM properties LIMIT 10</sql>", nil
		},
	}

	fragments := []models.SchemaFragment{
		{
			Table: "properties",
			Description: "Table: properties (Schema: public)\nColumns:\n" +
				"- city (text, NULL)\n",
		},
		{
			Table:       "properties",
			Column:      "notes",
			Description: "Column: properties.notes (text)\n" + strings.Repeat("x", 500),
		},
	}

	cfg := DefaultConfig()
	cfg.MaxContextLength = 100
	_, err := NewGenerator(chat, cfg, zap.NewNop()).Generate(context.Background(), "list cities", fragments)
	require.NoError(t, err)

	assert.Contains(t, captured, "Table: properties")
	assert.NotContains(t, captured, strings.Repeat("x", 500))
}
