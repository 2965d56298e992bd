package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/services"
)

// IndexResponse for schema reindex results.
type IndexResponse struct {
	Namespace     string `json:"namespace"`
	TableCount    int    `json:"table_count"`
	FragmentCount int    `json:"fragment_count"`
	DurationMs    int64  `json:"duration_ms"`
}

// IndexHandler handles schema index rebuild requests.
type IndexHandler struct {
	indexService *services.IndexService
	logger       *zap.Logger
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(indexService *services.IndexService, logger *zap.Logger) *IndexHandler {
	return &IndexHandler{indexService: indexService, logger: logger}
}

// RegisterRoutes registers the index handler's routes on the given mux.
func (h *IndexHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/index", h.Reindex)
}

// Reindex handles POST /api/index requests. It rebuilds the schema fragment
// index from the live database. The old index stays live until the new one
// is published, so concurrent asks are never left without an index.
func (h *IndexHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	report, err := h.indexService.Reindex(r.Context())
	if err != nil {
		h.logger.Error("Schema reindex failed", zap.Error(err))
		if err := PipelineErrorResponse(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	data := IndexResponse{
		Namespace:     report.Namespace,
		TableCount:    report.TableCount,
		FragmentCount: report.FragmentCount,
		DurationMs:    report.DurationMillis,
	}
	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
