// Package tagging derives short lowercase keyword tags from text spans via
// the generation capability. Tagging is best-effort: failures degrade to an
// empty tag set and never block ingestion or querying.
package tagging

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/oylhq/oyl/llm"
)

const tagPromptTemplate = "Generate %d short semantic tags (single words or short phrases) for the following text. " +
	"Return only a comma-separated list of tags, nothing else.\n\nText:\n%s\n\nTags:"

var tagSeparator = regexp.MustCompile(`[,\n]`)

// Tagger asks the tagging model for descriptive tags.
type Tagger struct {
	client       llm.Client
	model        string
	maxTags      int
	snippetChars int
	logger       *zap.Logger
}

func NewTagger(client llm.Client, model string, maxTags, snippetChars int, logger *zap.Logger) *Tagger {
	if maxTags <= 0 {
		maxTags = 3
	}
	if snippetChars <= 0 {
		snippetChars = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tagger{
		client:       client,
		model:        model,
		maxTags:      maxTags,
		snippetChars: snippetChars,
		logger:       logger,
	}
}

// Tags returns up to maxTags lowercase tags for text. On any model failure
// it logs and returns an empty set.
func (t *Tagger) Tags(ctx context.Context, text string) []string {
	snippet := text
	if runes := []rune(snippet); len(runes) > t.snippetChars {
		snippet = string(runes[:t.snippetChars])
	}

	raw, err := t.client.Generate(ctx, llm.Request{
		Model:  t.model,
		Prompt: fmt.Sprintf(tagPromptTemplate, t.maxTags, snippet),
	})
	if err != nil {
		t.logger.Warn("tagging failed", zap.Error(err))
		return nil
	}

	tags := ParseTags(raw)
	if len(tags) > t.maxTags {
		tags = tags[:t.maxTags]
	}
	return tags
}

// ParseTags splits a model response on commas and newlines, trims and
// lower-cases each entry, and drops empties.
func ParseTags(raw string) []string {
	parts := tagSeparator.Split(raw, -1)
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.ToLower(strings.TrimSpace(p)); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
