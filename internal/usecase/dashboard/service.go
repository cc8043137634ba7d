// Package dashboard aggregates per-indicator business-continuity summaries:
// one seed retrieval, then an independent assessment per match. The batch
// blocks until every match is processed and preserves retrieval order.
package dashboard

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/iocsight/internal/domain"
)

// Aggregation defaults.
const (
	DefaultSeed        = "threat"
	DefaultTopK        = 10
	DefaultConcurrency = 4
)

// Service runs the dashboard aggregation.
type Service struct {
	embed       Embedder
	index       Index
	assessor    ImpactAssessor
	namespace   string
	seed        string
	topK        int
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// New creates a dashboard service. seed and topK are the configured fallbacks
// for requests that omit them; empty seed, non-positive topK and non-positive
// concurrency fall back to the package defaults. limiter can be nil (no
// upstream rate cap).
func New(
	embed Embedder, index Index, assessor ImpactAssessor,
	namespace, seed string, topK, concurrency int,
	limiter *rate.Limiter, logger *zap.Logger,
) *Service {
	if seed == "" {
		seed = DefaultSeed
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		embed:       embed,
		index:       index,
		assessor:    assessor,
		namespace:   namespace,
		seed:        seed,
		topK:        topK,
		concurrency: concurrency,
		limiter:     limiter,
		logger:      logger,
	}
}

// Aggregate retrieves the top-K matches for the seed query and assesses each
// match independently. A failing assessment yields a marker entry at that
// match's position; a failing seed retrieval fails the whole batch. Empty
// seed and non-positive topK fall back to the configured defaults.
func (s *Service) Aggregate(
	ctx context.Context, seed string, topK int,
) ([]domain.ImpactEntry, error) {
	if seed == "" {
		seed = s.seed
	}
	if topK <= 0 {
		topK = s.topK
	}

	embResult, err := s.embed.Embed(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("seed retrieval: %w", err)
	}

	matches, err := s.index.Query(ctx, embResult.Embedding, topK, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("seed retrieval: %w", err)
	}
	if len(matches) == 0 {
		return []domain.ImpactEntry{}, nil
	}

	entries := s.assessAll(ctx, matches)

	// Cancellation is a terminal outcome, not a partial batch.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation aborted: %w", err)
	}

	return entries, nil
}

// assessAll fans the matches out across a bounded worker set. Each result is
// written to its own pre-sized slot, so output order always mirrors input
// order regardless of completion order.
func (s *Service) assessAll(ctx context.Context, matches []domain.Match) []domain.ImpactEntry {
	entries := make([]domain.ImpactEntry, len(matches))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, m := range matches {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, m domain.Match) {
			defer wg.Done()
			defer func() { <-sem }()
			entries[i] = s.assessOne(ctx, m)
		}(i, m)
	}
	wg.Wait()

	return entries
}

func (s *Service) assessOne(ctx context.Context, m domain.Match) domain.ImpactEntry {
	entry := domain.ImpactEntry{MatchID: m.ID, Score: m.Score}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			entry.FailureReason = markerReason(m.ID, err)
			return entry
		}
	}

	result, err := s.assessor.ImpactForMatch(ctx, m.Metadata)
	if err != nil {
		s.logger.Warn("Dashboard assessment failed",
			zap.String("match_id", m.ID),
			zap.Error(err),
		)
		entry.FailureReason = markerReason(m.ID, err)
		return entry
	}

	entry.Summary = result.Text
	return entry
}

// markerReason builds the failure marker for one entry. It references the
// match id so a consumer can tell which indicator's assessment failed.
func markerReason(matchID string, err error) string {
	return fmt.Sprintf("assessment failed for %s: %v", matchID, err)
}
