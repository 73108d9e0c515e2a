// Package vectorstore provides the per-collection vector index capability:
// idempotent upsert of chunk records and nearest-neighbor query by cosine
// distance.
package vectorstore

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oylhq/oyl/apperr"
	"github.com/oylhq/oyl/config"
)

// Metadata is the per-chunk payload stored alongside the embedding.
type Metadata struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Source     string `json:"source"`
	Tags       string `json:"tags"` // comma-joined lowercase tags
}

// TagList splits the comma-joined tag string into individual tags.
func (m Metadata) TagList() []string {
	if m.Tags == "" {
		return nil
	}
	parts := strings.Split(m.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Record is one chunk to upsert: re-upserting the same ID replaces its
// vector, text, and metadata.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata Metadata
}

// Match is one nearest-neighbor result. Distance is the index's native
// cosine distance (lower is closer).
type Match struct {
	Text     string
	Metadata Metadata
	Distance float64
}

// Index is the vector index capability consumed by ingestion and retrieval.
type Index interface {
	Upsert(ctx context.Context, collection string, records []Record) error
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error)
}

// New builds the configured index backend. The pool may be nil for non-pg
// backends.
func New(cfg *config.Config, pool *pgxpool.Pool) (Index, error) {
	switch cfg.VectorStore.Type {
	case "pgvector":
		if pool == nil {
			return nil, apperr.Configf("pgvector store requires a postgres connection")
		}
		return NewPgvectorIndex(pool), nil
	case "chroma":
		return NewChromaIndex(cfg.VectorStore.Chroma.BaseURL, cfg.VectorStore.Chroma.TimeoutSecs), nil
	case "memory":
		return NewMemoryIndex(), nil
	default:
		return nil, apperr.Configf("unknown vector store type: %s", cfg.VectorStore.Type)
	}
}
