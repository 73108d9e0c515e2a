// Package retrieval answers "which chunks are relevant to this query":
// query tagging, embedding, nearest-neighbor search, and a tag-overlap
// filter that falls back to the unfiltered candidates rather than returning
// nothing.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oylhq/oyl/embeddings"
	"github.com/oylhq/oyl/vectorstore"
)

// Chunk is one retrieved candidate, most relevant first. Relevance is
// max(0, 1−distance) clamped to [0, 1].
type Chunk struct {
	Text           string   `json:"chunk"`
	DocumentID     string   `json:"document_id"`
	SourceDocument string   `json:"source_document"`
	Relevance      float64  `json:"relevance_score"`
	Tags           []string `json:"tags"`
}

// Tagger derives the ephemeral query tag set. Best-effort: an empty set
// disables the tag filter.
type Tagger interface {
	Tags(ctx context.Context, text string) []string
}

// Retriever orchestrates the embedder, the vector index, and the tagger.
type Retriever struct {
	tagger   Tagger
	embedder embeddings.Embedder
	index    vectorstore.Index
	topK     int
	logger   *zap.Logger
}

func NewRetriever(tagger Tagger, embedder embeddings.Embedder, index vectorstore.Index, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		tagger:   tagger,
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve returns up to k chunks relevant to query, plus the query tags it
// derived. An empty result means the collection holds no candidates at all;
// callers treat that as "no knowledge available", not an error.
func (r *Retriever) Retrieve(ctx context.Context, collection, query string, k int) ([]Chunk, []string, error) {
	if k <= 0 {
		k = r.topK
	}

	queryTags := r.tagger.Tags(ctx, query)

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.index.Query(ctx, collection, vec, k)
	if err != nil {
		return nil, nil, fmt.Errorf("vector search: %w", err)
	}
	if len(matches) == 0 {
		return nil, queryTags, nil
	}

	candidates := make([]Chunk, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, Chunk{
			Text:           m.Text,
			DocumentID:     m.Metadata.DocumentID,
			SourceDocument: m.Metadata.Source,
			Relevance:      relevance(m.Distance),
			Tags:           m.Metadata.TagList(),
		})
	}

	if len(queryTags) == 0 {
		return candidates, queryTags, nil
	}

	filtered := make([]Chunk, 0, len(candidates))
	for _, c := range candidates {
		if overlaps(c.Tags, queryTags) {
			filtered = append(filtered, c)
		}
	}
	// Tag mismatch alone must never empty the result set: fall back to the
	// unfiltered candidates.
	if len(filtered) == 0 {
		r.logger.Debug("tag filter removed all candidates, falling back",
			zap.String("collection", collection), zap.Strings("query_tags", queryTags))
		return candidates, queryTags, nil
	}
	return filtered, queryTags, nil
}

func relevance(distance float64) float64 {
	score := 1 - distance
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func overlaps(tags, queryTags []string) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	for _, qt := range queryTags {
		if _, ok := set[qt]; ok {
			return true
		}
	}
	return false
}
