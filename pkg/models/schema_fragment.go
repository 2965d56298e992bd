// Package models defines the data types shared across the query pipeline.
package models

// SchemaFragment is a textual, embeddable description of one table or
// column, used as retrieval context for SQL generation. Fragments are
// created by an indexing run and immutable until the indexer re-runs.
type SchemaFragment struct {
	// Table is the table name; Column is set only for per-column fragments.
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`

	// Description is the embedded text: column list with types and
	// constraints for table fragments, sampled values for column fragments.
	Description string `json:"description"`

	// Hash fingerprints the description for idempotence checks.
	Hash string `json:"hash"`
}

// ID returns the fragment's stable identifier within an index version.
func (f *SchemaFragment) ID() string {
	if f.Column != "" {
		return f.Table + "." + f.Column
	}
	return f.Table
}
