package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oylhq/oyl/apperr"
)

type openAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder returns an Embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(opts Options) Embedder {
	cfg := openai.DefaultConfig(opts.OpenAIAPIKey)
	if opts.OpenAIBaseURL != "" {
		cfg.BaseURL = opts.OpenAIBaseURL
	}

	return &openAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		dimension: opts.Dimension,
	}
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, apperr.Capability("embedding", fmt.Errorf("create openai embeddings: %w", err))
	}
	if len(resp.Data) == 0 {
		return nil, apperr.Capability("embedding", fmt.Errorf("openai embeddings returned no data"))
	}

	vec := resp.Data[0].Embedding
	if e.dimension > 0 && len(vec) != e.dimension {
		return nil, apperr.Capability("embedding",
			fmt.Errorf("openai embedding dimension mismatch: expected %d, got %d", e.dimension, len(vec)))
	}

	return vec, nil
}

var _ Embedder = (*openAIEmbedder)(nil)
