package models

import "time"

// CacheEntry is the payload stored in the semantic cache namespace. Keyed by
// the question's embedding, so near-duplicate phrasings of the same question
// find it. Entries are advisory: a cache miss always falls back to full
// generation, so no cross-request locking is needed.
type CacheEntry struct {
	// Question is the canonical text the entry was created for. Used for the
	// exact-match fast path ahead of the distance threshold.
	Question string `json:"question"`

	// SQL is the validated statement generated for the question cluster.
	// Only SQL that passed validation is ever cached.
	SQL string `json:"sql"`

	// Answer is the natural-language summary of the last successful run.
	Answer string `json:"answer"`

	// Rows snapshots the last successful result set, capped at
	// MaxCachedRows. Used only when re-execution on hit is disabled.
	Rows []map[string]any `json:"rows,omitempty"`

	// Truncated marks an incomplete snapshot: either the execution itself
	// hit the row limit, or the snapshot was capped at MaxCachedRows.
	Truncated bool `json:"truncated"`

	Columns   []string  `json:"columns,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	HitCount  int       `json:"hit_count"`
}

// MaxCachedRows caps the result snapshot stored in a cache entry.
const MaxCachedRows = 50
