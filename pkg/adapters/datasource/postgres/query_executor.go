package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/logging"
	"github.com/askdb-ai/askdb-engine/pkg/models"
)

// QueryExecutor runs validated SELECT statements inside read-only
// transactions with a statement timeout and a hard row cap.
type QueryExecutor struct {
	pool      *pgxpool.Pool
	timeout   time.Duration
	ownedPool bool
	logger    *zap.Logger
}

// NewQueryExecutor connects to the target database for query execution.
// timeout bounds each statement; 0 disables the per-query deadline.
func NewQueryExecutor(ctx context.Context, cfg *Config, timeout time.Duration, logger *zap.Logger) (*QueryExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &QueryExecutor{pool: pool, timeout: timeout, ownedPool: true, logger: logger}, nil
}

// NewQueryExecutorFromPool wraps an existing pool. The caller retains
// ownership of the pool.
func NewQueryExecutorFromPool(pool *pgxpool.Pool, timeout time.Duration, logger *zap.Logger) *QueryExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryExecutor{pool: pool, timeout: timeout, logger: logger}
}

// Close releases the connection pool if this executor created it.
func (e *QueryExecutor) Close() error {
	if e.ownedPool && e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// Execute runs the statement inside a read-only transaction. Results are
// read with limit+1 rows requested so truncation is detected without a
// second query. Timeouts map to ExecutionTimeout, database rejections to
// ExecutionError with the sanitized database message as detail.
func (e *QueryExecutor) Execute(ctx context.Context, sqlQuery string, rowLimit int) (*models.ExecutionResult, error) {
	if rowLimit <= 0 {
		rowLimit = 1
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, e.classify(ctx, err, sqlQuery)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	// One extra row tells truncation apart from an exact-limit result.
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, rowLimit+1)

	rows, err := tx.Query(ctx, wrapped)
	if err != nil {
		return nil, e.classify(ctx, err, sqlQuery)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	truncated := false
	for rows.Next() {
		if len(resultRows) == rowLimit {
			truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, e.classify(ctx, err, sqlQuery)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, e.classify(ctx, err, sqlQuery)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, e.classify(ctx, err, sqlQuery)
	}

	duration := time.Since(start)
	e.logger.Debug("query executed",
		zap.String("query", logging.SanitizeQuery(sqlQuery)),
		zap.Int("rows", len(resultRows)),
		zap.Bool("truncated", truncated),
		zap.Duration("duration", duration))

	return &models.ExecutionResult{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
		Duration:  duration,
	}, nil
}

// classify maps execution failures onto the pipeline error taxonomy.
func (e *QueryExecutor) classify(ctx context.Context, err error, sqlQuery string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.logger.Warn("query timed out", zap.String("query", logging.SanitizeQuery(sqlQuery)))
		return apperrors.New(apperrors.KindExecutionTimeout, "query execution timed out", false, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		e.logger.Warn("query rejected by database",
			zap.String("code", pgErr.Code),
			zap.String("message", pgErr.Message),
			zap.String("query", logging.SanitizeQuery(sqlQuery)))
		return apperrors.New(apperrors.KindExecutionError,
			fmt.Sprintf("database rejected query: %s", logging.SanitizeError(pgErr)), false, err)
	}

	e.logger.Error("query execution failed", zap.String("error", logging.SanitizeError(err)))
	return apperrors.New(apperrors.KindExecutionError, "query execution failed", false, err)
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
