// Package datasource defines the contracts the pipeline uses to introspect
// and query a target database. Implementations live in subpackages by
// dialect; only PostgreSQL is wired today.
package datasource

import (
	"context"

	"github.com/askdb-ai/askdb-engine/pkg/models"
)

// SchemaDiscoverer introspects the target database for indexing runs.
// Each implementation owns its connection and must be closed when done.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas).
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all foreign key relationships.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// GetDistinctValues returns up to limit distinct non-null values from a
	// column, as strings, sorted alphabetically. Used to enrich fragments
	// for low-cardinality text columns.
	GetDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error)

	// Close releases the database connection.
	Close() error
}

// QueryExecutor runs validated SELECT statements against the target
// database. Implementations must enforce read-only access at the session
// level, bound results to the row limit, and honor the context deadline.
type QueryExecutor interface {
	// Execute runs the statement inside a read-only transaction and returns
	// at most rowLimit rows, with Truncated set when more were available.
	Execute(ctx context.Context, sqlQuery string, rowLimit int) (*models.ExecutionResult, error)

	// Close releases the database connection.
	Close() error
}
