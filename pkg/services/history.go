package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/models"
	"github.com/askdb-ai/askdb-engine/pkg/repositories"
)

// HistoryService exposes query history listings and runs the retention
// sweep in the background.
type HistoryService struct {
	repo      repositories.QueryHistoryRepository
	retention time.Duration
	logger    *zap.Logger
}

func NewHistoryService(repo repositories.QueryHistoryRepository, retention time.Duration, logger *zap.Logger) *HistoryService {
	return &HistoryService{repo: repo, retention: retention, logger: logger}
}

// List returns history entries newest first.
func (s *HistoryService) List(ctx context.Context, filters models.QueryHistoryFilters) ([]models.QueryHistoryEntry, error) {
	return s.repo.List(ctx, filters)
}

// Purge deletes entries older than the retention window. A zero or negative
// retention disables purging.
func (s *HistoryService) Purge(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-s.retention)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("purged old query history",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

// StartRetentionSweep purges on the given interval until ctx is cancelled.
func (s *HistoryService) StartRetentionSweep(ctx context.Context, interval time.Duration) {
	if s.retention <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Purge(ctx); err != nil {
					s.logger.Warn("history retention sweep failed", zap.Error(err))
				}
			}
		}
	}()
}
