package llm

//go:generate mockgen -destination=mocks/provider_mock.go -package=mocks agenttrace-backend/internal/llm Provider

import (
	"context"
	"errors"
)

// Provider produces a completion for a system and user prompt.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// ErrNotImplemented is returned by the placeholder provider for empty prompts.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderReply is the canned answer of PlaceholderProvider.
const PlaceholderReply = `{"summary":"AI provider not configured","root_cause":"No OPENAI_API_KEY is set for this environment","suggested_fix":"Set OPENAI_API_KEY to enable real analysis"}`

// PlaceholderProvider stands in for a real provider during local development.
// It answers every prompt with PlaceholderReply.
type PlaceholderProvider struct{}

// Complete returns PlaceholderReply.
func (PlaceholderProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.User == "" {
		return "", ErrNotImplemented
	}
	return PlaceholderReply, nil
}

var _ Provider = PlaceholderProvider{}
