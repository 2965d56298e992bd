package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorResponse represents a structured error in tool results. Pipeline
// rejections are returned this way, as successful tool results carrying an
// error payload, so the calling model sees the reason and can rephrase.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewErrorResult creates a tool result containing a structured error. Use
// this for errors the calling model can act on (rejected SQL, missing
// index). System failures should still return Go errors.
func NewErrorResult(kind, message string) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Kind:    kind,
		Message: message,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}
