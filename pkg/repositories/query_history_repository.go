// Package repositories provides data access for the engine's own storage.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askdb-ai/askdb-engine/pkg/database"
	"github.com/askdb-ai/askdb-engine/pkg/models"
)

// QueryHistoryRepository defines the interface for query history data access.
type QueryHistoryRepository interface {
	// Record inserts one history entry. Failures here never fail the
	// request; callers log and move on.
	Record(ctx context.Context, entry *models.QueryHistoryEntry) error

	// List returns entries newest first, filtered by the given filters.
	List(ctx context.Context, filters models.QueryHistoryFilters) ([]models.QueryHistoryEntry, error)

	// DeleteOlderThan removes entries created before the cutoff and returns
	// how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// queryHistoryRepository implements QueryHistoryRepository on PostgreSQL.
type queryHistoryRepository struct {
	db *database.DB
}

// NewQueryHistoryRepository creates a new query history repository.
func NewQueryHistoryRepository(db *database.DB) QueryHistoryRepository {
	return &queryHistoryRepository{db: db}
}

func (r *queryHistoryRepository) Record(ctx context.Context, entry *models.QueryHistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO query_history (id, question, sql_text, row_count, cache_hit, truncated, error_kind, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.Question, entry.SQL, entry.RowCount,
		entry.CacheHit, entry.Truncated, entry.ErrorKind, entry.DurationMs, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert query history: %w", err)
	}
	return nil
}

func (r *queryHistoryRepository) List(ctx context.Context, filters models.QueryHistoryFilters) ([]models.QueryHistoryEntry, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, question, sql_text, row_count, cache_hit, truncated, error_kind, duration_ms, created_at
		FROM query_history
	`
	args := []any{}
	if filters.Since != nil {
		query += ` WHERE created_at >= $1`
		args = append(args, *filters.Since)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []models.QueryHistoryEntry
	for rows.Next() {
		var e models.QueryHistoryEntry
		if err := rows.Scan(&e.ID, &e.Question, &e.SQL, &e.RowCount,
			&e.CacheHit, &e.Truncated, &e.ErrorKind, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

func (r *queryHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM query_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old history: %w", err)
	}
	return tag.RowsAffected(), nil
}
