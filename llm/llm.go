// Package llm wraps the text generation capability used for OCR, tagging,
// and answer inference. Requests optionally carry raw image bytes for
// multimodal models.
package llm

import (
	"context"

	"github.com/oylhq/oyl/apperr"
	"github.com/oylhq/oyl/config"
)

// Request is one generation call: a model name, a prompt, and optional
// binary image attachments.
type Request struct {
	Model  string
	Prompt string
	Images [][]byte
}

// Client issues generation requests against a model backend.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Options carries provider connection settings.
type Options struct {
	Provider string

	OllamaHost    string
	OllamaTimeout int

	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewClient builds a generation client for the configured provider.
func NewClient(cfg *config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.Providers.Generation,
		OllamaHost:    cfg.Ollama.BaseURL,
		OllamaTimeout: cfg.Ollama.TimeoutSecs,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, apperr.Configf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, apperr.Configf("unknown generation provider: %s", opts.Provider)
	}
}
