package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/schema"
)

// SchemaIndexer rebuilds the schema fragment index.
type SchemaIndexer interface {
	Index(ctx context.Context) (*schema.IndexReport, error)
}

// IndexService rebuilds the schema index and keeps the semantic cache
// consistent with it.
type IndexService struct {
	indexer SchemaIndexer
	cache   *SemanticCache
	logger  *zap.Logger
}

func NewIndexService(indexer SchemaIndexer, cache *SemanticCache, logger *zap.Logger) *IndexService {
	return &IndexService{indexer: indexer, cache: cache, logger: logger}
}

// Reindex rebuilds the fragment index and, on success, drops every cached
// answer. Cached SQL references the old schema and may return wrong results
// against the new one, so the cache goes with the index it was built on.
func (s *IndexService) Reindex(ctx context.Context) (*schema.IndexReport, error) {
	report, err := s.indexer.Index(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("cache invalidation after reindex failed", zap.Error(err))
	}

	s.logger.Info("schema index rebuilt",
		zap.Int("tables", report.TableCount),
		zap.Int("fragments", report.FragmentCount),
		zap.Int64("duration_ms", report.DurationMillis))
	return report, nil
}
