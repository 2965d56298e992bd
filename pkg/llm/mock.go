package llm

import (
	"context"
)

// MockChatClient is a configurable mock for testing generative callers.
// Set the function fields to control behavior in tests.
type MockChatClient struct {
	// GenerateResponseFunc is called when GenerateResponse is invoked.
	// If nil, returns empty string and nil error.
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Call tracking for verification
	GenerateResponseCalls int
	Prompts               []string
}

// GenerateResponse implements ChatClient.
func (m *MockChatClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	m.GenerateResponseCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature)
	}
	return "", nil
}

// GetModel implements ChatClient.
func (m *MockChatClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// MockEmbeddingClient is a configurable mock for testing embedding callers.
type MockEmbeddingClient struct {
	// CreateEmbeddingFunc is called when CreateEmbedding is invoked.
	// If nil, returns a zero vector of Dim length.
	CreateEmbeddingFunc func(ctx context.Context, input string) ([]float32, error)

	// Dim is returned by Dimension. Defaults to 4.
	Dim int

	CreateEmbeddingCalls  int
	CreateEmbeddingsCalls int
}

// CreateEmbedding implements EmbeddingClient.
func (m *MockEmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.CreateEmbeddingCalls++
	if m.CreateEmbeddingFunc != nil {
		return m.CreateEmbeddingFunc(ctx, input)
	}
	return make([]float32, m.Dimension()), nil
}

// CreateEmbeddings implements EmbeddingClient.
func (m *MockEmbeddingClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	m.CreateEmbeddingsCalls++
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		vec, err := m.CreateEmbedding(ctx, input)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension implements EmbeddingClient.
func (m *MockEmbeddingClient) Dimension() int {
	if m.Dim == 0 {
		return 4
	}
	return m.Dim
}

var (
	_ ChatClient      = (*MockChatClient)(nil)
	_ EmbeddingClient = (*MockEmbeddingClient)(nil)
)
