package domain

import "context"

// EmbeddingResult holds a computed vector and provider token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is optionally implemented by transports that can verify
// upstream availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
