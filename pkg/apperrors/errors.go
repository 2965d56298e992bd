// Package apperrors defines the error taxonomy surfaced by the query pipeline.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure. Kinds are part of the API contract:
// they are returned verbatim in the "kind" field of error responses.
type Kind string

const (
	KindEmbeddingUnavailable   Kind = "EmbeddingUnavailable"
	KindSchemaIndexUnavailable Kind = "SchemaIndexUnavailable"
	KindGenerationRejected     Kind = "GenerationRejected"
	KindExecutionError         Kind = "ExecutionError"
	KindExecutionTimeout       Kind = "ExecutionTimeout"
	KindSecretUnavailable      Kind = "SecretUnavailable"
	KindSummarizationDegraded  Kind = "SummarizationDegraded"
	KindInternal               Kind = "Internal"
)

// Error is a classified pipeline error.
type Error struct {
	Kind      Kind
	Message   string // Human-readable, safe to surface to callers
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface so the retry
// package can check retryability without importing apperrors.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// New creates a classified error.
func New(kind Kind, message string, retryable bool, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// KindOf extracts the Kind from an error chain.
// Unclassified errors report KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// UserMessage extracts the safe-to-surface message from an error chain.
// Unclassified errors get a generic message so internal details never leak.
func UserMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindGenerationRejected:
		return http.StatusUnprocessableEntity
	case KindExecutionError:
		return http.StatusBadRequest
	case KindExecutionTimeout:
		return http.StatusGatewayTimeout
	case KindEmbeddingUnavailable, KindSchemaIndexUnavailable, KindSecretUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
