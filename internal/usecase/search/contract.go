package search

import (
	"context"

	"github.com/kailas-cloud/iocsight/internal/domain"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index runs namespace-scoped top-K similarity queries.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int, namespace string) ([]domain.Match, error)
}
