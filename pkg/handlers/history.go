package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/models"
	"github.com/askdb-ai/askdb-engine/pkg/services"
)

// HistoryEntryResponse is one row of query history.
type HistoryEntryResponse struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	SQL        string `json:"sql,omitempty"`
	RowCount   int    `json:"row_count"`
	CacheHit   bool   `json:"cache_hit"`
	Truncated  bool   `json:"truncated"`
	ErrorKind  string `json:"error_kind,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// ListHistoryResponse wraps the entries array.
type ListHistoryResponse struct {
	Entries []HistoryEntryResponse `json:"entries"`
}

// HistoryHandler handles query history requests.
type HistoryHandler struct {
	historyService *services.HistoryService
	logger         *zap.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(historyService *services.HistoryService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{historyService: historyService, logger: logger}
}

// RegisterRoutes registers the history handler's routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/history", h.List)
}

// List handles GET /api/history requests. Supports optional query
// parameters: limit (entry count) and since (RFC3339 lower bound).
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var filters models.QueryHistoryFilters

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		filters.Limit = limit
	}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_since", "since must be an RFC3339 timestamp"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		filters.Since = &since
	}

	entries, err := h.historyService.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list query history", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list query history"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	data := ListHistoryResponse{
		Entries: make([]HistoryEntryResponse, len(entries)),
	}
	for i, e := range entries {
		data.Entries[i] = HistoryEntryResponse{
			ID:         e.ID.String(),
			Question:   e.Question,
			SQL:        e.SQL,
			RowCount:   e.RowCount,
			CacheHit:   e.CacheHit,
			Truncated:  e.Truncated,
			ErrorKind:  e.ErrorKind,
			DurationMs: e.DurationMs,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
