package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/askdb-ai/askdb-engine/pkg/config"
)

// NewRedisClient creates a Redis client for the vector store and verifies
// connectivity. The schema index and semantic cache both require Redis, so
// an empty host is an error rather than an optional feature.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
