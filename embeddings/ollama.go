package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oylhq/oyl/apperr"
)

type ollamaEmbedder struct {
	host      string
	model     string
	dimension int
	client    *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error"`
}

// NewOllamaEmbedder returns an Embedder talking to Ollama's /api/embeddings
// endpoint.
func NewOllamaEmbedder(opts Options) Embedder {
	host := strings.TrimRight(opts.OllamaHost, "/")
	if host == "" {
		host = "http://localhost:11434"
	}
	timeout := time.Duration(opts.OllamaTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ollamaEmbedder{
		host:      host,
		model:     opts.Model,
		dimension: opts.Dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperr.Capability("embedding", fmt.Errorf("call ollama embeddings API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(data) > 0 {
			return nil, apperr.Capability("embedding", fmt.Errorf("ollama embeddings API error: %s", string(data)))
		}
		return nil, apperr.Capability("embedding", fmt.Errorf("ollama embeddings API returned status %s", resp.Status))
	}

	var payload ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperr.Capability("embedding", fmt.Errorf("decode ollama response: %w", err))
	}
	if payload.Error != "" {
		return nil, apperr.Capability("embedding", fmt.Errorf("ollama embeddings error: %s", payload.Error))
	}

	vec := make([]float32, len(payload.Embedding))
	for i, value := range payload.Embedding {
		vec[i] = float32(value)
	}

	if e.dimension > 0 && len(vec) != e.dimension {
		return nil, apperr.Capability("embedding",
			fmt.Errorf("ollama embedding dimension mismatch: expected %d, got %d", e.dimension, len(vec)))
	}

	return vec, nil
}

var _ Embedder = (*ollamaEmbedder)(nil)
