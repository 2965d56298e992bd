package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/services"
)

// maxQuestionLength caps the accepted question size. Anything longer is not
// a question, it is a prompt injection attempt or a mistake.
const maxQuestionLength = 2000

// AskRequest for POST /api/ask body.
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse for answered questions.
type AskResponse struct {
	Answer        string           `json:"answer"`
	SQL           string           `json:"sql"`
	Columns       []string         `json:"columns"`
	Rows          []map[string]any `json:"rows"`
	RowCount      int              `json:"row_count"`
	Truncated     bool             `json:"truncated"`
	CacheHit      bool             `json:"cache_hit"`
	CacheDistance float64          `json:"cache_distance,omitempty"`
	Degraded      bool             `json:"degraded"`
	DurationMs    int64            `json:"duration_ms"`
}

// AskHandler handles natural language question requests.
type AskHandler struct {
	askService *services.AskService
	logger     *zap.Logger
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(askService *services.AskService, logger *zap.Logger) *AskHandler {
	return &AskHandler{askService: askService, logger: logger}
}

// RegisterRoutes registers the ask handler's routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.Ask)
}

// Ask handles POST /api/ask requests.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	question := strings.TrimSpace(req.Query)
	if question == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_query", "Query is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if len(question) > maxQuestionLength {
		if err := ErrorResponse(w, http.StatusBadRequest, "query_too_long", "Query exceeds the maximum length"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.askService.Ask(r.Context(), question)
	if err != nil {
		kind := apperrors.KindOf(err)
		if kind == apperrors.KindInternal {
			h.logger.Error("Ask request failed", zap.Error(err))
		} else {
			h.logger.Info("Ask request rejected",
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
		if err := PipelineErrorResponse(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: toAskResponse(result)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func toAskResponse(result *services.AskResult) AskResponse {
	resp := AskResponse{
		Answer:        result.Answer,
		SQL:           result.SQL,
		CacheHit:      result.CacheHit,
		CacheDistance: result.CacheDistance,
		Degraded:      result.Degraded,
		DurationMs:    result.Duration.Milliseconds(),
	}
	if result.Result != nil {
		resp.Columns = result.Result.Columns
		resp.Rows = result.Result.Rows
		resp.RowCount = result.Result.RowCount
		resp.Truncated = result.Result.Truncated
	}
	if resp.Rows == nil {
		resp.Rows = []map[string]any{}
	}
	return resp
}
