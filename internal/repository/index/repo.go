// Package index implements the similarity index client over the store's
// FT.SEARCH KNN surface.
package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/iocsight/internal/db"
	"github.com/kailas-cloud/iocsight/internal/domain"
	"github.com/kailas-cloud/iocsight/internal/metrics"
)

// metadataFields are the indicator fields requested from the index.
var metadataFields = []string{"type", "value", "severity", "confidence", "sector"}

// store is the consumer interface for index queries (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo issues namespace-scoped top-K nearest-neighbor queries.
type Repo struct {
	store store
}

// New creates an index repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Query runs a top-K KNN query within a namespace. Scores come back
// unmodified from the store; an empty match set is a valid result. A store
// failure surfaces as domain.ErrRetrievalUnavailable.
func (r *Repo) Query(
	ctx context.Context, vector []float32, topK int, namespace string,
) ([]domain.Match, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be >= 1, got %d: %w", topK, domain.ErrValidation)
	}

	q := &db.KNNQuery{
		IndexName:    indexName(namespace),
		Vector:       vector,
		K:            topK,
		ReturnFields: metadataFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(namespace, "error").Inc()
		return nil, fmt.Errorf("knn query %s: %v: %w", namespace, err, domain.ErrRetrievalUnavailable)
	}
	metrics.RetrievalRequestsTotal.WithLabelValues(namespace, "success").Inc()
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	prefix := keyPrefix(namespace)
	matches := make([]domain.Match, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		matches = append(matches, domain.Match{
			ID:       strings.TrimPrefix(entry.Key, prefix),
			Score:    entry.Score,
			Metadata: metadataFromFields(entry.Fields),
		})
	}

	return matches, nil
}

func indexName(namespace string) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, namespace)
}

func keyPrefix(namespace string) string {
	return fmt.Sprintf("%s%s:", domain.KeyPrefix, namespace)
}

// metadataFromFields maps flat hash fields into the typed metadata record.
// Absent fields stay empty; defaults are applied later at the prompt
// boundary, never here.
func metadataFromFields(fields map[string]string) domain.Metadata {
	return domain.Metadata{
		Type:       fields["type"],
		Value:      fields["value"],
		Severity:   fields["severity"],
		Confidence: fields["confidence"],
		Sector:     fields["sector"],
	}
}
