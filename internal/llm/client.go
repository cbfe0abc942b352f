// Package llm abstracts the language-model vendors behind one interface.
// Each provider is one variant selected by configuration; the pipeline
// never branches on provider names.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Default request limits shared by the providers.
const (
	defaultTimeout     = 2 * time.Minute
	defaultMaxTokens   = 1024
	defaultTemperature = 0.1
)

// Client is the uniform completion interface the evaluation pipeline calls.
type Client interface {
	// Complete sends a system and user prompt and returns the raw reply
	// text. Implementations honor ctx for cancellation and apply their
	// configured timeout when ctx carries no deadline.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Name identifies the provider for logging and error reporting.
	Name() string
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string // empty uses the provider's public endpoint
	Timeout  time.Duration
}

// New constructs the client for the configured provider. Adding a provider
// means adding a case here and a file implementing Client.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key not configured for provider %q", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return newAnthropicClient(cfg), nil
	case "openai":
		return newOpenAIClient(cfg), nil
	case "gemini":
		return newGeminiClient(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// withDeadline applies the client timeout when the caller supplied none.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
