// Package services wires the query pipeline together: embedding, cache
// lookup, schema retrieval, generation, execution, and summarization.
package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/llm"
	"github.com/askdb-ai/askdb-engine/pkg/models"
	"github.com/askdb-ai/askdb-engine/pkg/repositories"
)

// Embedder produces embedding vectors for question text.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// FragmentRetriever finds schema context for a question vector.
type FragmentRetriever interface {
	Retrieve(ctx context.Context, questionVector []float32) ([]models.SchemaFragment, error)
}

// SQLGenerator produces validated SQL from a question and schema context.
type SQLGenerator interface {
	Generate(ctx context.Context, question string, fragments []models.SchemaFragment) (*models.GeneratedQuery, error)
	Repair(ctx context.Context, question string, fragments []models.SchemaFragment, failedSQL, dbError string) (*models.GeneratedQuery, error)
}

// Executor runs validated SQL against the target database.
type Executor interface {
	Execute(ctx context.Context, sqlQuery string, rowLimit int) (*models.ExecutionResult, error)
}

// Answerer renders execution results as natural language.
type Answerer interface {
	Summarize(ctx context.Context, question, sqlQuery string, result *models.ExecutionResult) (answer string, degraded bool)
}

// AskConfig holds the orchestration policy knobs.
type AskConfig struct {
	// RowLimit caps rows returned per query.
	RowLimit int

	// ReexecuteOnHit re-runs cached SQL instead of serving the snapshot, so
	// hits reflect current data.
	ReexecuteOnHit bool

	// MaxRegenerations bounds execution-feedback repair attempts per request.
	MaxRegenerations int
}

// AskResult is the outcome of one answered question.
type AskResult struct {
	Answer        string                  `json:"answer"`
	SQL           string                  `json:"sql"`
	Result        *models.ExecutionResult `json:"result"`
	CacheHit      bool                    `json:"cache_hit"`
	CacheDistance float64                 `json:"cache_distance,omitempty"`
	Degraded      bool                    `json:"degraded"`
	Duration      time.Duration           `json:"-"`
}

// AskService orchestrates the full question-to-answer pipeline.
type AskService struct {
	embedder  Embedder
	cache     *SemanticCache
	retriever FragmentRetriever
	generator SQLGenerator
	executor  Executor
	answerer  Answerer
	history   repositories.QueryHistoryRepository
	cfg       AskConfig
	logger    *zap.Logger
}

// NewAskService creates an AskService. history may be nil when bookkeeping
// is not wired (tests, embedded use).
func NewAskService(embedder Embedder, cache *SemanticCache, retriever FragmentRetriever,
	generator SQLGenerator, executor Executor, answerer Answerer,
	history repositories.QueryHistoryRepository, cfg AskConfig, logger *zap.Logger) *AskService {
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = 1000
	}
	return &AskService{
		embedder:  embedder,
		cache:     cache,
		retriever: retriever,
		generator: generator,
		executor:  executor,
		answerer:  answerer,
		history:   history,
		cfg:       cfg,
		logger:    logger,
	}
}

// Ask answers one natural language question. The path is: embed, cache
// lookup, then on a miss retrieve schema context, generate and validate SQL,
// execute read-only, summarize, and cache the validated outcome. Every
// request is recorded in history, including failures.
func (s *AskService) Ask(ctx context.Context, question string) (*AskResult, error) {
	start := time.Now()

	vector, err := s.embedder.CreateEmbedding(ctx, question)
	if err != nil {
		wrapped := apperrors.New(apperrors.KindEmbeddingUnavailable,
			"embedding provider unavailable", llm.IsRetryable(err), err)
		s.record(ctx, question, "", nil, false, wrapped, start)
		return nil, wrapped
	}

	result, served, err := s.tryCache(ctx, question, vector, start)
	if err != nil {
		return nil, err
	}
	if served {
		return result, nil
	}

	fragments, err := s.retriever.Retrieve(ctx, vector)
	if err != nil {
		s.record(ctx, question, "", nil, false, err, start)
		return nil, err
	}

	generated, err := s.generator.Generate(ctx, question, fragments)
	if err != nil {
		s.record(ctx, question, "", nil, false, err, start)
		return nil, err
	}

	outcome, err := s.executeWithRepair(ctx, question, fragments, generated)
	if err != nil {
		s.record(ctx, question, generated.SQL, nil, false, err, start)
		return nil, err
	}
	execResult, sqlText := outcome.exec, outcome.sql

	answer, degraded := s.answerer.Summarize(ctx, question, sqlText, execResult)

	entry := models.CacheEntry{
		Question:  question,
		SQL:       sqlText,
		Answer:    answer,
		Rows:      execResult.Rows,
		Columns:   execResult.Columns,
		Truncated: execResult.Truncated,
	}
	if err := s.cache.Store(ctx, vector, entry); err != nil {
		s.logger.Warn("cache write failed", zap.Error(err))
	}

	s.record(ctx, question, sqlText, execResult, false, nil, start)

	return &AskResult{
		Answer:   answer,
		SQL:      sqlText,
		Result:   execResult,
		Degraded: degraded,
		Duration: time.Since(start),
	}, nil
}

// tryCache serves the request from the semantic cache when possible. Cache
// infrastructure failures degrade to a miss, never to a request failure. A
// hit whose cached SQL the database now rejects degrades to a miss so the
// pipeline regenerates against the current schema; a timeout of the cached
// SQL is surfaced instead, since regenerating tends to produce the same
// slow statement.
func (s *AskService) tryCache(ctx context.Context, question string, vector []float32, start time.Time) (*AskResult, bool, error) {
	hit, err := s.cache.Lookup(ctx, question, vector)
	if err != nil {
		s.logger.Warn("cache lookup failed, treating as miss", zap.Error(err))
		return nil, false, nil
	}
	if hit == nil {
		return nil, false, nil
	}

	if !s.cfg.ReexecuteOnHit {
		result := &models.ExecutionResult{
			Columns:   hit.Entry.Columns,
			Rows:      hit.Entry.Rows,
			RowCount:  len(hit.Entry.Rows),
			Truncated: hit.Entry.Truncated,
		}
		s.record(ctx, question, hit.Entry.SQL, result, true, nil, start)
		return &AskResult{
			Answer:        hit.Entry.Answer,
			SQL:           hit.Entry.SQL,
			Result:        result,
			CacheHit:      true,
			CacheDistance: hit.Distance,
			Duration:      time.Since(start),
		}, true, nil
	}

	execResult, err := s.executor.Execute(ctx, hit.Entry.SQL, s.cfg.RowLimit)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindExecutionTimeout {
			s.record(ctx, question, hit.Entry.SQL, nil, true, err, start)
			return nil, false, err
		}
		s.logger.Warn("cached SQL failed to execute, falling back to generation",
			zap.String("kind", string(apperrors.KindOf(err))))
		return nil, false, nil
	}

	answer, degraded := s.answerer.Summarize(ctx, question, hit.Entry.SQL, execResult)
	s.record(ctx, question, hit.Entry.SQL, execResult, true, nil, start)
	return &AskResult{
		Answer:        answer,
		SQL:           hit.Entry.SQL,
		Result:        execResult,
		CacheHit:      true,
		CacheDistance: hit.Distance,
		Degraded:      degraded,
		Duration:      time.Since(start),
	}, true, nil
}

type executeOutcome struct {
	exec *models.ExecutionResult
	sql  string
}

// executeWithRepair runs the generated SQL and, when the database rejects
// it, feeds the database error back to the generator for a bounded number
// of repair attempts. Timeouts are not repaired; slow SQL fed back to the
// model tends to come back just as slow.
func (s *AskService) executeWithRepair(ctx context.Context, question string, fragments []models.SchemaFragment, generated *models.GeneratedQuery) (*executeOutcome, error) {
	current := generated
	var lastErr error

	for attempt := 0; attempt <= s.cfg.MaxRegenerations; attempt++ {
		result, err := s.executor.Execute(ctx, current.SQL, s.cfg.RowLimit)
		if err == nil {
			return &executeOutcome{exec: result, sql: current.SQL}, nil
		}
		lastErr = err

		if apperrors.KindOf(err) != apperrors.KindExecutionError || attempt == s.cfg.MaxRegenerations {
			return nil, err
		}

		repaired, repairErr := s.generator.Repair(ctx, question, fragments, current.SQL, apperrors.UserMessage(err))
		if repairErr != nil {
			return nil, repairErr
		}
		s.logger.Info("regenerated SQL after execution failure")
		current = repaired
	}

	return nil, lastErr
}

// record writes the request to history. History failures are logged, never
// surfaced.
func (s *AskService) record(ctx context.Context, question, sqlText string, result *models.ExecutionResult, cacheHit bool, reqErr error, start time.Time) {
	if s.history == nil {
		return
	}

	entry := &models.QueryHistoryEntry{
		Question:   question,
		SQL:        sqlText,
		CacheHit:   cacheHit,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if result != nil {
		entry.RowCount = result.RowCount
		entry.Truncated = result.Truncated
	}
	if reqErr != nil {
		entry.ErrorKind = string(apperrors.KindOf(reqErr))
	}

	if err := s.history.Record(ctx, entry); err != nil {
		s.logger.Warn("history record failed", zap.Error(err))
	}
}
