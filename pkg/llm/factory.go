package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/config"
)

// NewChatClient creates the chat client selected by ai.provider.
func NewChatClient(cfg *config.AIConfig, logger *zap.Logger) (ChatClient, error) {
	switch cfg.Provider {
	case "anthropic":
		client, err := NewAnthropicClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.RequestTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil

	case "openai":
		client, err := NewClient(&ClientConfig{
			Endpoint: cfg.LLMBaseURL,
			Model:    cfg.LLMModel,
			APIKey:   cfg.LLMAPIKey,
			Timeout:  cfg.RequestTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// NewEmbeddingClient creates the embedding client. Embeddings always use the
// OpenAI-compatible API regardless of the chat provider.
func NewEmbeddingClient(cfg *config.AIConfig, logger *zap.Logger) (EmbeddingClient, error) {
	client, err := NewClient(&ClientConfig{
		Endpoint:       cfg.EffectiveEmbeddingBaseURL(),
		EmbeddingModel: cfg.EmbeddingModel,
		Dimension:      cfg.EmbeddingDimension,
		APIKey:         cfg.EffectiveEmbeddingAPIKey(),
		Timeout:        cfg.RequestTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	return client, nil
}
