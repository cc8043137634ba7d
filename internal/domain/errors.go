package domain

import "errors"

var (
	// ErrValidation signals malformed request fields.
	ErrValidation = errors.New("validation failed")
	// ErrRetrievalUnavailable signals that the similarity index is unreachable
	// or returned a malformed response.
	ErrRetrievalUnavailable = errors.New("similarity index unavailable")
	// ErrGenerationUnavailable signals a transport failure calling the
	// generation endpoint.
	ErrGenerationUnavailable = errors.New("generation endpoint unavailable")
	// ErrGenerationMalformed signals an upstream generation response missing
	// the generated text.
	ErrGenerationMalformed = errors.New("malformed generation response")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrQuotaExceeded signals an exhausted LLM token budget.
	ErrQuotaExceeded = errors.New("llm token quota exceeded")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)
