package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oylhq/oyl/apperr"
)

type openAIClient struct {
	client *openai.Client
}

// NewOpenAIClient returns a Client backed by the OpenAI chat completion API.
// Image attachments are sent as base64 data URLs in a multi-part user
// message.
func NewOpenAIClient(opts Options) Client {
	cfg := openai.DefaultConfig(opts.OpenAIAPIKey)
	if opts.OpenAIBaseURL != "" {
		cfg.BaseURL = opts.OpenAIBaseURL
	}

	return &openAIClient{client: openai.NewClientWithConfig(cfg)}
}

func (c *openAIClient) Generate(ctx context.Context, req Request) (string, error) {
	message := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}

	if len(req.Images) == 0 {
		message.Content = req.Prompt
	} else {
		parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		})
		for _, img := range req.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
				},
			})
		}
		message.MultiContent = parts
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: []openai.ChatCompletionMessage{message},
	})
	if err != nil {
		return "", apperr.Capability("generation", fmt.Errorf("create openai chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Capability("generation", fmt.Errorf("openai chat completion returned no choices"))
	}

	return resp.Choices[0].Message.Content, nil
}

var _ Client = (*openAIClient)(nil)
