package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/llm"
	"github.com/askdb-ai/askdb-engine/pkg/models"
	"github.com/askdb-ai/askdb-engine/pkg/services"
	"github.com/askdb-ai/askdb-engine/pkg/vectorstore"
)

type stubRetriever struct {
	fragments []models.SchemaFragment
	err       error
}

func (s *stubRetriever) Retrieve(ctx context.Context, questionVector []float32) ([]models.SchemaFragment, error) {
	return s.fragments, s.err
}

type stubGenerator struct {
	query *models.GeneratedQuery
	err   error
}

func (s *stubGenerator) Generate(ctx context.Context, question string, fragments []models.SchemaFragment) (*models.GeneratedQuery, error) {
	return s.query, s.err
}

func (s *stubGenerator) Repair(ctx context.Context, question string, fragments []models.SchemaFragment, failedSQL, dbError string) (*models.GeneratedQuery, error) {
	return s.query, s.err
}

type stubExecutor struct {
	result *models.ExecutionResult
	err    error
}

func (s *stubExecutor) Execute(ctx context.Context, sqlQuery string, rowLimit int) (*models.ExecutionResult, error) {
	return s.result, s.err
}

type stubAnswerer struct {
	answer string
}

func (s *stubAnswerer) Summarize(ctx context.Context, question, sqlQuery string, result *models.ExecutionResult) (string, bool) {
	return s.answer, false
}

func newTestAskHandler(t *testing.T, generator *stubGenerator, executor *stubExecutor) *AskHandler {
	t.Helper()

	cache := services.NewSemanticCache(vectorstore.NewMemoryStore(4, 10), 0.15, zap.NewNop())
	askService := services.NewAskService(
		&llm.MockEmbeddingClient{Dim: 4},
		cache,
		&stubRetriever{fragments: []models.SchemaFragment{{Table: "properties"}}},
		generator,
		executor,
		&stubAnswerer{answer: "There is one home."},
		nil,
		services.AskConfig{RowLimit: 1000, ReexecuteOnHit: true},
		zap.NewNop(),
	)
	return NewAskHandler(askService, zap.NewNop())
}

func TestAskHandler_Success(t *testing.T) {
	generator := &stubGenerator{query: &models.GeneratedQuery{
		SQL:     "SELECT address FROM properties LIMIT 10",
		Verdict: models.VerdictAccepted,
	}}
	executor := &stubExecutor{result: &models.ExecutionResult{
		Columns:  []string{"address"},
		Rows:     []map[string]any{{"address": "12 Grant Ave"}},
		RowCount: 1,
	}}
	handler := newTestAskHandler(t, generator, executor)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"query": "what homes are listed?"}`))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response struct {
		Success bool        `json:"success"`
		Data    AskResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success {
		t.Error("expected success true")
	}
	if response.Data.Answer != "There is one home." {
		t.Errorf("unexpected answer: %q", response.Data.Answer)
	}
	if response.Data.SQL != "SELECT address FROM properties LIMIT 10" {
		t.Errorf("unexpected SQL: %q", response.Data.SQL)
	}
	if response.Data.RowCount != 1 {
		t.Errorf("expected row_count 1, got %d", response.Data.RowCount)
	}
	if response.Data.CacheHit {
		t.Error("expected cache_hit false on first ask")
	}
}

func TestAskHandler_MissingQuery(t *testing.T) {
	handler := newTestAskHandler(t, &stubGenerator{}, &stubExecutor{})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"blank query", `{"query": "   "}`},
		{"malformed JSON", `{"query": `},
		{"wrong type", `{"query": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.Ask(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestAskHandler_QueryTooLong(t *testing.T) {
	handler := newTestAskHandler(t, &stubGenerator{}, &stubExecutor{})

	question := strings.Repeat("a", maxQuestionLength+1)
	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"query": "`+question+`"}`))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestAskHandler_PipelineErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		kind       apperrors.Kind
		wantStatus int
	}{
		{"generation rejected", apperrors.KindGenerationRejected, http.StatusUnprocessableEntity},
		{"execution error", apperrors.KindExecutionError, http.StatusBadRequest},
		{"execution timeout", apperrors.KindExecutionTimeout, http.StatusGatewayTimeout},
		{"schema index unavailable", apperrors.KindSchemaIndexUnavailable, http.StatusServiceUnavailable},
		{"internal", apperrors.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := &stubGenerator{err: apperrors.New(tt.kind, "pipeline failed", false, nil)}
			handler := newTestAskHandler(t, generator, &stubExecutor{})

			req := httptest.NewRequest(http.MethodPost, "/api/ask",
				strings.NewReader(`{"query": "how many homes?"}`))
			rec := httptest.NewRecorder()

			handler.Ask(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var response ApiResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Success {
				t.Error("expected success false")
			}
			if response.Error != string(tt.kind) {
				t.Errorf("expected error code %q, got %q", tt.kind, response.Error)
			}
		})
	}
}
