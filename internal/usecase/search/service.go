// Package search implements semantic indicator search: embed the query,
// run a top-K similarity query, return the matches unmodified.
package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/iocsight/internal/domain"
)

// DefaultTopK is the match count used when the caller does not specify one.
const DefaultTopK = 10

// Service handles semantic IOC search. No generation is involved.
type Service struct {
	embed     Embedder
	index     Index
	namespace string
}

// New creates a search service scoped to one index namespace.
func New(embed Embedder, index Index, namespace string) *Service {
	return &Service{embed: embed, index: index, namespace: namespace}
}

// Search embeds the query and returns the top-K matches with scores passed
// through unmodified. topK <= 0 falls back to DefaultTopK.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]domain.Match, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty: %w", domain.ErrValidation)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	matches, err := s.index.Query(ctx, embResult.Embedding, topK, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	return matches, nil
}
