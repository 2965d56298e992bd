package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
)

// ApiResponse is the standard response envelope.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(ApiResponse{
		Success: false,
		Error:   errorCode,
		Message: message,
	})
}

// PipelineErrorResponse maps a classified pipeline error to its HTTP status
// and writes it. The kind string is the error code; the message is the safe
// user-facing message, never the raw cause.
func PipelineErrorResponse(w http.ResponseWriter, err error) error {
	kind := apperrors.KindOf(err)
	return ErrorResponse(w, apperrors.HTTPStatus(kind), string(kind), apperrors.UserMessage(err))
}
