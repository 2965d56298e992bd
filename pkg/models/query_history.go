package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryHistoryEntry records one completed request, successful or not.
// History is engine-owned bookkeeping; it never feeds back into generation.
type QueryHistoryEntry struct {
	ID        uuid.UUID `json:"id"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql,omitempty"`
	RowCount  int       `json:"row_count"`
	CacheHit  bool      `json:"cache_hit"`
	Truncated bool      `json:"truncated"`

	// ErrorKind is empty on success, otherwise the apperrors kind string.
	ErrorKind string `json:"error_kind,omitempty"`

	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// QueryHistoryFilters narrows history listings.
type QueryHistoryFilters struct {
	Since *time.Time
	Limit int
}
