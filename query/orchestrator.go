// Package query is the top-level entry for a single assistant's question:
// resolve the collection, retrieve, then infer, short-circuiting when the
// assistant has no knowledge.
package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/oylhq/oyl/inference"
	"github.com/oylhq/oyl/retrieval"
)

// CollectionResolver maps an assistant to its vector index collection.
type CollectionResolver interface {
	AssistantCollection(ctx context.Context, assistantID string) (string, error)
}

// Retriever finds chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, collection, query string, k int) ([]retrieval.Chunk, []string, error)
}

// Engine answers a question over a non-empty chunk set.
type Engine interface {
	Infer(ctx context.Context, mode inference.Mode, question string, chunks []retrieval.Chunk) (inference.Result, error)
	Model(mode inference.Mode) string
}

// Source is one retrieved chunk's provenance attached to a response.
type Source struct {
	DocumentID     string   `json:"document_id"`
	SourceDocument string   `json:"source_document"`
	Relevance      float64  `json:"relevance_score"`
	Tags           []string `json:"tags"`
}

// Response is the single-assistant answer shape.
type Response struct {
	Answer         string         `json:"answer"`
	ReasoningSteps []string       `json:"reasoning_steps,omitempty"`
	Mode           inference.Mode `json:"inference_mode"`
	ModelUsed      string         `json:"model_used"`
	QueryTags      []string       `json:"query_tags"`
	Sources        []Source       `json:"sources"`
	ElapsedSeconds float64        `json:"processing_time_seconds"`
}

// Orchestrator wires resolver, retriever, and engine.
type Orchestrator struct {
	resolver  CollectionResolver
	retriever Retriever
	engine    Engine
	topK      int
	logger    *zap.Logger
}

func NewOrchestrator(resolver CollectionResolver, retriever Retriever, engine Engine, topK int, logger *zap.Logger) *Orchestrator {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		resolver:  resolver,
		retriever: retriever,
		engine:    engine,
		topK:      topK,
		logger:    logger,
	}
}

// Answer runs the query pipeline for one assistant. An empty retrieval
// result returns the fixed no-knowledge response (no sources, zero elapsed
// time, the model the requested mode would have used) without touching the
// generation capability.
func (o *Orchestrator) Answer(ctx context.Context, assistantID, queryText string, mode inference.Mode, topK int) (Response, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return Response{}, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		topK = o.topK
	}

	collection, err := o.resolver.AssistantCollection(ctx, assistantID)
	if err != nil {
		return Response{}, err
	}

	chunks, queryTags, err := o.retriever.Retrieve(ctx, collection, queryText, topK)
	if err != nil {
		return Response{}, fmt.Errorf("retrieve chunks: %w", err)
	}
	if queryTags == nil {
		queryTags = []string{}
	}

	if len(chunks) == 0 {
		o.logger.Info("no knowledge available for query",
			zap.String("assistant_id", assistantID), zap.String("mode", string(mode)))
		return Response{
			Answer:    inference.NoAnswer,
			Mode:      mode,
			ModelUsed: o.engine.Model(mode),
			QueryTags: queryTags,
			Sources:   []Source{},
		}, nil
	}

	result, err := o.engine.Infer(ctx, mode, queryText, chunks)
	if err != nil {
		return Response{}, err
	}

	sources := make([]Source, len(chunks))
	for i, c := range chunks {
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		sources[i] = Source{
			DocumentID:     c.DocumentID,
			SourceDocument: c.SourceDocument,
			Relevance:      c.Relevance,
			Tags:           tags,
		}
	}

	resp := Response{
		Mode:           mode,
		ModelUsed:      result.ModelUsed(),
		QueryTags:      queryTags,
		Sources:        sources,
		ElapsedSeconds: result.ElapsedSeconds(),
	}
	switch r := result.(type) {
	case *inference.Reasoning:
		resp.Answer = r.Answer
		resp.ReasoningSteps = r.Steps
	case *inference.Fast:
		resp.Answer = r.Answer
	default:
		resp.Answer = result.FinalAnswer()
	}
	return resp, nil
}
