// Package llm provides clients for language-model completion backends.
package llm

import (
	"context"
	"fmt"

	"github.com/vhoang/docbot/config"
)

// Client produces one completion for one prompt. Calls are synchronous and
// may block for as long as the backend takes; callers cancel via ctx.
// Retries are the backend client's concern, never added here.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Provider    string
	Model       string
	Temperature float32

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: openai llm provider selected but OPENAI_API_KEY not set", config.ErrInvalidConfig)
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", config.ErrInvalidConfig, opts.Provider)
	}
}
