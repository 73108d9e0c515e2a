// Package ingestion runs the document pipeline: text extraction, chunking,
// tagging, embedding, and vector index upsert, with per-document status
// transitions.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oylhq/oyl/embeddings"
	"github.com/oylhq/oyl/extract"
	"github.com/oylhq/oyl/store"
	"github.com/oylhq/oyl/tagging"
	"github.com/oylhq/oyl/vectorstore"
)

// DocumentStore is the slice of the persistence collaborator the pipeline
// needs: document lookup and atomic status transitions.
type DocumentStore interface {
	Document(ctx context.Context, id string) (store.Document, error)
	BeginProcessing(ctx context.Context, id string) error
	FinishProcessing(ctx context.Context, id string, status store.Status) error
}

// Stats summarizes one document's processing attempt.
type Stats struct {
	ChunksCreated  int     `json:"chunks_created"`
	TagsGenerated  int     `json:"tags_generated"`
	ElapsedSeconds float64 `json:"processing_time_seconds"`
}

// Pipeline orchestrates extraction, chunking, tagging, embedding, and
// indexing for documents.
type Pipeline struct {
	docs      DocumentStore
	extractor *extract.Extractor
	tagger    *tagging.Tagger
	embedder  embeddings.Embedder
	index     vectorstore.Index

	chunkSize    int
	chunkOverlap int
	concurrency  int
	logger       *zap.Logger
}

func NewPipeline(
	docs DocumentStore,
	extractor *extract.Extractor,
	tagger *tagging.Tagger,
	embedder embeddings.Embedder,
	index vectorstore.Index,
	chunkSize, chunkOverlap, batchConcurrency int,
	logger *zap.Logger,
) *Pipeline {
	if batchConcurrency <= 0 {
		batchConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		docs:         docs,
		extractor:    extractor,
		tagger:       tagger,
		embedder:     embedder,
		index:        index,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		concurrency:  batchConcurrency,
		logger:       logger,
	}
}

// ProcessDocument ingests one document into the collection. The document
// moves pending→processing→completed|failed exactly once per attempt; a
// cancelled or failing attempt always lands on failed, never completed.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID, collection string) (Stats, error) {
	start := time.Now()

	doc, err := p.docs.Document(ctx, documentID)
	if err != nil {
		return Stats{}, err
	}
	if err := p.docs.BeginProcessing(ctx, documentID); err != nil {
		return Stats{}, err
	}

	stats, err := p.process(ctx, doc, collection)
	terminal := store.StatusCompleted
	if err != nil {
		terminal = store.StatusFailed
	}
	// The terminal transition must land even when ctx was cancelled
	// mid-flight, so an abandoned document never reads as completed.
	if finishErr := p.docs.FinishProcessing(context.WithoutCancel(ctx), documentID, terminal); finishErr != nil {
		p.logger.Error("finish document status", zap.String("document_id", documentID), zap.Error(finishErr))
		if err == nil {
			err = finishErr
		}
	}
	if err != nil {
		return Stats{}, fmt.Errorf("process document %s: %w", documentID, err)
	}

	stats.ElapsedSeconds = time.Since(start).Seconds()
	p.logger.Info("document ingested",
		zap.String("document_id", documentID),
		zap.String("collection", collection),
		zap.Int("chunks", stats.ChunksCreated),
		zap.Int("tags", stats.TagsGenerated))
	return stats, nil
}

func (p *Pipeline) process(ctx context.Context, doc store.Document, collection string) (Stats, error) {
	text, err := p.documentText(ctx, doc)
	if err != nil {
		return Stats{}, err
	}

	chunks := Chunk(text, p.chunkSize, p.chunkOverlap)
	if len(chunks) == 0 {
		p.logger.Info("document yielded no text", zap.String("document_id", doc.ID))
		return Stats{}, nil
	}

	source := baseName(doc.FilePath)
	records := make([]vectorstore.Record, 0, len(chunks))
	totalTags := 0
	for idx, chunk := range chunks {
		tags := p.tagger.Tags(ctx, chunk)
		totalTags += len(tags)

		vec, err := p.embedder.Embed(ctx, chunk)
		if err != nil {
			return Stats{}, fmt.Errorf("embed chunk %d: %w", idx, err)
		}

		records = append(records, vectorstore.Record{
			ID:     fmt.Sprintf("%s_%d", doc.ID, idx),
			Vector: vec,
			Text:   chunk,
			Metadata: vectorstore.Metadata{
				DocumentID: doc.ID,
				ChunkIndex: idx,
				Source:     source,
				Tags:       strings.Join(tags, ","),
			},
		})
	}

	if err := p.index.Upsert(ctx, collection, records); err != nil {
		return Stats{}, fmt.Errorf("index chunks: %w", err)
	}

	return Stats{ChunksCreated: len(chunks), TagsGenerated: totalTags}, nil
}

func (p *Pipeline) documentText(ctx context.Context, doc store.Document) (string, error) {
	data, readErr := os.ReadFile(doc.FilePath)
	if readErr != nil {
		if doc.RawContent != "" {
			return doc.RawContent, nil
		}
		return "", fmt.Errorf("read document file: %w", readErr)
	}

	text, err := p.extractor.Extract(ctx, data, doc.FileType)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" && doc.RawContent != "" {
		text = doc.RawContent
	}
	return text, nil
}

// DocumentResult is one batch entry: per-document stats or the failure that
// stopped that document alone.
type DocumentResult struct {
	DocumentID string `json:"document_id"`
	Stats
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Results   []DocumentResult `json:"results"`
}

// ProcessBatch processes documents concurrently up to the configured bound.
// Each document fails independently; one failure never aborts its siblings.
func (p *Pipeline) ProcessBatch(ctx context.Context, documentIDs []string, collection string) BatchResult {
	results := make([]DocumentResult, len(documentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, id := range documentIDs {
		i, id := i, id
		g.Go(func() error {
			stats, err := p.ProcessDocument(gctx, id, collection)
			if err != nil {
				p.logger.Warn("batch document failed", zap.String("document_id", id), zap.Error(err))
				results[i] = DocumentResult{DocumentID: id, Status: string(store.StatusFailed), Error: err.Error()}
				return nil
			}
			results[i] = DocumentResult{DocumentID: id, Stats: stats, Status: string(store.StatusCompleted)}
			return nil
		})
	}
	_ = g.Wait()

	batch := BatchResult{Results: results}
	for _, r := range results {
		if r.Error != "" {
			batch.Failed++
		} else {
			batch.Processed++
		}
	}
	return batch
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
