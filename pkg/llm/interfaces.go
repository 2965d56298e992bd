// Package llm provides the language-model capability interfaces and clients.
package llm

import (
	"context"
)

// ChatClient is the generative capability used for SQL generation and
// result summarization. Any provider implementing this shape is
// substitutable; the pipeline never depends on a vendor API directly.
type ChatClient interface {
	// GenerateResponse generates a single chat completion.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// EmbeddingClient converts text into fixed-length vectors. Schema fragments
// and questions must be embedded by the same client so their vectors share
// one space and distance metric.
type EmbeddingClient interface {
	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs in one call.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)

	// Dimension returns the fixed vector dimension D.
	Dimension() int
}

// Ensure the concrete clients satisfy the capability interfaces.
var (
	_ ChatClient      = (*Client)(nil)
	_ EmbeddingClient = (*Client)(nil)
	_ ChatClient      = (*AnthropicClient)(nil)
)
