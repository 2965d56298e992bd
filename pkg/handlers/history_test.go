package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/models"
	"github.com/askdb-ai/askdb-engine/pkg/services"
)

type stubHistoryRepo struct {
	entries     []models.QueryHistoryEntry
	lastFilters models.QueryHistoryFilters
}

func (s *stubHistoryRepo) Record(ctx context.Context, entry *models.QueryHistoryEntry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubHistoryRepo) List(ctx context.Context, filters models.QueryHistoryFilters) ([]models.QueryHistoryEntry, error) {
	s.lastFilters = filters
	return s.entries, nil
}

func (s *stubHistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestHistoryHandler_List(t *testing.T) {
	repo := &stubHistoryRepo{entries: []models.QueryHistoryEntry{
		{
			ID:         uuid.New(),
			Question:   "how many homes are listed",
			SQL:        "SELECT COUNT(*) FROM properties",
			RowCount:   1,
			DurationMs: 42,
			CreatedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
	}}
	handler := NewHistoryHandler(services.NewHistoryService(repo, 0, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Success bool                `json:"success"`
		Data    ListHistoryResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Data.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(response.Data.Entries))
	}
	entry := response.Data.Entries[0]
	if entry.Question != "how many homes are listed" {
		t.Errorf("unexpected question: %q", entry.Question)
	}
	if entry.CreatedAt != "2026-08-01T12:00:00Z" {
		t.Errorf("unexpected created_at: %q", entry.CreatedAt)
	}
}

func TestHistoryHandler_ListWithFilters(t *testing.T) {
	repo := &stubHistoryRepo{}
	handler := NewHistoryHandler(services.NewHistoryService(repo, 0, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet,
		"/api/history?limit=25&since=2026-08-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if repo.lastFilters.Limit != 25 {
		t.Errorf("expected limit 25, got %d", repo.lastFilters.Limit)
	}
	if repo.lastFilters.Since == nil {
		t.Fatal("expected since filter to be set")
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !repo.lastFilters.Since.Equal(want) {
		t.Errorf("expected since %v, got %v", want, repo.lastFilters.Since)
	}
}

func TestHistoryHandler_InvalidParams(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"non-numeric limit", "/api/history?limit=abc"},
		{"negative limit", "/api/history?limit=-1"},
		{"bad since", "/api/history?since=yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHistoryHandler(
				services.NewHistoryService(&stubHistoryRepo{}, 0, zap.NewNop()), zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()

			handler.List(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}
