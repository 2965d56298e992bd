package models

import (
	"time"
)

// QueryRequest is one inbound natural-language question.
type QueryRequest struct {
	Question   string    `json:"query"`
	CallerID   string    `json:"caller_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Verdict is the accept/reject outcome of validating generated SQL.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
)

// GeneratedQuery is the output of one generation attempt: the SQL text, the
// schema fragments it was conditioned on, and the validation verdict. It
// lives only within one request unless promoted into a CacheEntry.
type GeneratedQuery struct {
	SQL       string
	Fragments []SchemaFragment
	Verdict   Verdict
	Reason    string // Populated when Verdict is rejected
}

// ExecutionResult is the structured output of running validated SQL.
type ExecutionResult struct {
	Columns []string `json:"columns"`

	// Rows preserve result order; each row maps column name to value.
	Rows []map[string]any `json:"rows"`

	RowCount int `json:"row_count"`

	// Truncated is set when the result was capped at the row limit; RowCount
	// then equals the limit, not the true row count.
	Truncated bool `json:"truncated"`

	Duration time.Duration `json:"-"`
}
