package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/schema"
	"github.com/askdb-ai/askdb-engine/pkg/services"
	"github.com/askdb-ai/askdb-engine/pkg/vectorstore"
)

type stubIndexer struct {
	report *schema.IndexReport
	err    error
}

func (s *stubIndexer) Index(ctx context.Context) (*schema.IndexReport, error) {
	return s.report, s.err
}

func newTestIndexHandler(indexer *stubIndexer) *IndexHandler {
	cache := services.NewSemanticCache(vectorstore.NewMemoryStore(4, 10), 0.15, zap.NewNop())
	return NewIndexHandler(services.NewIndexService(indexer, cache, zap.NewNop()), zap.NewNop())
}

func TestIndexHandler_Reindex(t *testing.T) {
	handler := newTestIndexHandler(&stubIndexer{report: &schema.IndexReport{
		Namespace:      "schema_v123",
		TableCount:     2,
		FragmentCount:  5,
		DurationMillis: 87,
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/index", nil)
	rec := httptest.NewRecorder()

	handler.Reindex(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response struct {
		Success bool          `json:"success"`
		Data    IndexResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Data.TableCount != 2 {
		t.Errorf("expected 2 tables, got %d", response.Data.TableCount)
	}
	if response.Data.FragmentCount != 5 {
		t.Errorf("expected 5 fragments, got %d", response.Data.FragmentCount)
	}
	if response.Data.Namespace != "schema_v123" {
		t.Errorf("unexpected namespace: %q", response.Data.Namespace)
	}
}

func TestIndexHandler_ReindexFailure(t *testing.T) {
	handler := newTestIndexHandler(&stubIndexer{
		err: apperrors.New(apperrors.KindEmbeddingUnavailable,
			"embedding provider unavailable", true, nil),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/index", nil)
	rec := httptest.NewRecorder()

	handler.Reindex(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}

	var response ApiResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Error != string(apperrors.KindEmbeddingUnavailable) {
		t.Errorf("expected error code %q, got %q", apperrors.KindEmbeddingUnavailable, response.Error)
	}
}
