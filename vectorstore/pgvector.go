package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/oylhq/oyl/apperr"
)

// PgvectorIndex stores chunk embeddings in a single Postgres table
// partitioned by collection name.
type PgvectorIndex struct {
	pool *pgxpool.Pool
}

func NewPgvectorIndex(pool *pgxpool.Pool) *PgvectorIndex {
	return &PgvectorIndex{pool: pool}
}

// EnsureSchema creates the pgvector extension, the chunk table, and its
// indexes for the given embedding dimension.
func (s *PgvectorIndex) EnsureSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return apperr.Configf("embedding dimension must be positive, got %d", dimension)
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS kb_chunks (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			document_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '',
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_kb_chunks_collection ON kb_chunks(collection)",
		"CREATE INDEX IF NOT EXISTS idx_kb_chunks_document ON kb_chunks(collection, document_id)",
		"CREATE INDEX IF NOT EXISTS idx_kb_chunks_embedding ON kb_chunks USING ivfflat (embedding vector_cosine_ops)",
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *PgvectorIndex) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return apperr.Capability("vector-index", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		if _, err := tx.Exec(ctx, `
			INSERT INTO kb_chunks (id, collection, document_id, chunk_index, content, source, tags, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				collection = EXCLUDED.collection,
				document_id = EXCLUDED.document_id,
				chunk_index = EXCLUDED.chunk_index,
				content = EXCLUDED.content,
				source = EXCLUDED.source,
				tags = EXCLUDED.tags,
				embedding = EXCLUDED.embedding,
				updated_at = NOW()
		`, rec.ID, collection, rec.Metadata.DocumentID, rec.Metadata.ChunkIndex,
			rec.Text, rec.Metadata.Source, rec.Metadata.Tags, pgvector.NewVector(rec.Vector)); err != nil {
			return apperr.Capability("vector-index", fmt.Errorf("upsert chunk %s: %w", rec.ID, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Capability("vector-index", fmt.Errorf("commit upsert: %w", err))
	}
	return nil
}

func (s *PgvectorIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT content, document_id, chunk_index, source, tags,
		       (embedding <=> $1::vector) AS distance
		FROM kb_chunks
		WHERE collection = $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3
	`, pgvector.NewVector(vector), collection, k)
	if err != nil {
		return nil, apperr.Capability("vector-index", fmt.Errorf("query similar chunks: %w", err))
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Text, &m.Metadata.DocumentID, &m.Metadata.ChunkIndex,
			&m.Metadata.Source, &m.Metadata.Tags, &m.Distance); err != nil {
			return nil, apperr.Capability("vector-index", fmt.Errorf("scan similar chunk: %w", err))
		}
		matches = append(matches, m)
	}
	if rows.Err() != nil {
		return nil, apperr.Capability("vector-index", rows.Err())
	}

	return matches, nil
}

var _ Index = (*PgvectorIndex)(nil)
