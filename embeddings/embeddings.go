// Package embeddings wraps the embedding-model capability. An embedding
// failure is a hard failure: an unembeddable chunk cannot be indexed or
// retrieved.
package embeddings

import (
	"context"

	"github.com/oylhq/oyl/apperr"
	"github.com/oylhq/oyl/config"
)

// Embedder derives a fixed-length vector from a text span.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options carries provider connection settings.
type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OllamaTimeout int

	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewEmbedder builds an embedder for the configured provider.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.Providers.Embedding,
		Model:         cfg.Models.Embedding,
		Dimension:     cfg.VectorStore.Dimension,
		OllamaHost:    cfg.Ollama.BaseURL,
		OllamaTimeout: cfg.Ollama.TimeoutSecs,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, apperr.Configf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, apperr.Configf("unknown embedding provider: %s", opts.Provider)
	}
}
