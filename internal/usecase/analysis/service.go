// Package analysis orchestrates the generation flows: context-grounded Q&A,
// single-indicator enrichment, business-continuity assessment and report
// generation. Query-based flows run embed, retrieve, assemble, render,
// generate in order; explicit-indicator flows skip straight to render. No
// stage masks an earlier stage's error.
package analysis

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/iocsight/internal/domain"
	"github.com/kailas-cloud/iocsight/internal/prompt"
)

// AskTopK is the match count retrieved for question answering.
const AskTopK = 5

// indicatorTypes are the accepted ioc_type values.
var indicatorTypes = map[string]struct{}{
	"ip":     {},
	"domain": {},
	"url":    {},
	"hash":   {},
}

// Service is the generation-flow orchestrator.
type Service struct {
	embed     Embedder
	index     Index
	gen       Generator
	namespace string
}

// New creates an analysis service scoped to one index namespace.
func New(embed Embedder, index Index, gen Generator, namespace string) *Service {
	return &Service{embed: embed, index: index, gen: gen, namespace: namespace}
}

// Ask answers a free-form question grounded in retrieved indicator context.
// The result's ContextUsed carries the assembled context block so callers
// can show what grounded the answer.
func (s *Service) Ask(ctx context.Context, query string) (domain.GenerationResult, error) {
	if query == "" {
		return domain.GenerationResult{}, fmt.Errorf("query must not be empty: %w", domain.ErrValidation)
	}

	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("vectorize query: %w", err)
	}

	matches, err := s.index.Query(ctx, embResult.Embedding, AskTopK, s.namespace)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("query index: %w", err)
	}

	contextBlock := prompt.BuildContext(matches)

	result, err := s.gen.Generate(ctx, prompt.Ask(query, contextBlock))
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("answer question: %w", err)
	}

	result.ContextUsed = contextBlock
	return result, nil
}

// Enrich produces threat context and remediation guidance for a single
// explicitly supplied indicator. No retrieval is involved.
func (s *Service) Enrich(
	ctx context.Context, ioc, iocType, severity string,
) (domain.GenerationResult, error) {
	if err := validateIndicator(ioc, iocType); err != nil {
		return domain.GenerationResult{}, err
	}

	result, err := s.gen.Generate(ctx, prompt.Enrich(ioc, iocType, severity))
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("enrich indicator: %w", err)
	}
	return result, nil
}

// AssessImpact produces a business-continuity assessment for a single
// explicitly supplied indicator. An empty sector defaults to "general".
func (s *Service) AssessImpact(
	ctx context.Context, ioc, iocType, severity, sector string,
) (domain.GenerationResult, error) {
	if err := validateIndicator(ioc, iocType); err != nil {
		return domain.GenerationResult{}, err
	}

	result, err := s.gen.Generate(ctx, prompt.Impact(ioc, iocType, severity, sector))
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("assess impact: %w", err)
	}
	return result, nil
}

// ImpactForMatch produces a business-continuity assessment from retrieved
// corpus metadata. Metadata is trusted as stored; missing severity and
// sector fall back to their defaults at the prompt boundary.
func (s *Service) ImpactForMatch(
	ctx context.Context, md domain.Metadata,
) (domain.GenerationResult, error) {
	result, err := s.gen.Generate(ctx, prompt.BatchImpact(md))
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("assess match impact: %w", err)
	}
	return result, nil
}

// GenerateReport produces a summary report from threat data parameters.
func (s *Service) GenerateReport(
	ctx context.Context, params prompt.ReportParams,
) (domain.GenerationResult, error) {
	result, err := s.gen.Generate(ctx, prompt.Report(params))
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate report: %w", err)
	}
	return result, nil
}

// validateIndicator checks the explicitly supplied indicator fields.
func validateIndicator(ioc, iocType string) error {
	if ioc == "" {
		return fmt.Errorf("ioc must not be empty: %w", domain.ErrValidation)
	}
	if _, ok := indicatorTypes[iocType]; !ok {
		return fmt.Errorf("unknown ioc_type %q: %w", iocType, domain.ErrValidation)
	}
	return nil
}
