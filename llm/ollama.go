package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oylhq/oyl/apperr"
)

type ollamaClient struct {
	host   string
	client *http.Client
}

type ollamaGenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Stream bool     `json:"stream"`
	Images []string `json:"images,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// NewOllamaClient returns a Client talking to Ollama's /api/generate
// endpoint. Images are base64-encoded into the request body.
func NewOllamaClient(opts Options) Client {
	host := strings.TrimRight(opts.OllamaHost, "/")
	if host == "" {
		host = "http://localhost:11434"
	}
	timeout := time.Duration(opts.OllamaTimeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &ollamaClient{
		host:   host,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *ollamaClient) Generate(ctx context.Context, req Request) (string, error) {
	payload := ollamaGenerateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: false,
	}
	for _, img := range req.Images {
		payload.Images = append(payload.Images, base64.StdEncoding.EncodeToString(img))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", apperr.Capability("generation", fmt.Errorf("call ollama generate API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(data) > 0 {
			return "", apperr.Capability("generation", fmt.Errorf("ollama generate API error: %s", string(data)))
		}
		return "", apperr.Capability("generation", fmt.Errorf("ollama generate API returned status %s", resp.Status))
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperr.Capability("generation", fmt.Errorf("decode ollama response: %w", err))
	}
	if parsed.Error != "" {
		return "", apperr.Capability("generation", fmt.Errorf("ollama generate error: %s", parsed.Error))
	}

	return parsed.Response, nil
}

var _ Client = (*ollamaClient)(nil)
