package domain

import "context"

// GenerationRequest is a rendered prompt pair. Constructed fresh per call,
// never reused across use cases.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
}

// GenerationResult is the output of one generation call. ContextUsed is the
// retrieved context block that conditioned the answer, empty when no
// retrieval occurred.
type GenerationResult struct {
	Text         string
	ContextUsed  string
	PromptTokens int
	TotalTokens  int
}

// Generator invokes a chat-completion style generative model. Exactly one
// upstream call per invocation; no internal retry, no streaming.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}
