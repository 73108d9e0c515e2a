package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oylhq/oyl/apperr"
)

func (s *Store) AddDocument(ctx context.Context, knowledgeBaseID, filePath, fileType, rawContent string) (Document, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM knowledge_bases WHERE id = $1)", knowledgeBaseID).Scan(&exists); err != nil {
		return Document{}, fmt.Errorf("check knowledge base: %w", err)
	}
	if !exists {
		return Document{}, apperr.NotFoundf("knowledge base %s", knowledgeBaseID)
	}

	doc := Document{
		ID:              uuid.NewString(),
		KnowledgeBaseID: knowledgeBaseID,
		FilePath:        filePath,
		FileType:        fileType,
		RawContent:      rawContent,
		Status:          StatusPending,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, knowledge_base_id, file_path, file_type, raw_content, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, doc.ID, doc.KnowledgeBaseID, doc.FilePath, doc.FileType, doc.RawContent, doc.Status).
		Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

func (s *Store) Document(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx, `
		SELECT id, knowledge_base_id, file_path, file_type, raw_content, status, created_at, updated_at
		FROM documents WHERE id = $1
	`, id).Scan(&doc.ID, &doc.KnowledgeBaseID, &doc.FilePath, &doc.FileType,
		&doc.RawContent, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, apperr.NotFoundf("document %s", id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document: %w", err)
	}
	return doc, nil
}

// ErrAlreadyProcessing reports a claim on a document another processing
// attempt currently holds.
var ErrAlreadyProcessing = errors.New("document already processing")

// BeginProcessing claims a document for a processing attempt with a single
// check-and-set update. A document already in processing cannot be claimed;
// terminal states may be re-entered only through this explicit call, which
// is the reprocessing request.
func (s *Store) BeginProcessing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $2
	`, id, StatusProcessing)
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, docErr := s.Document(ctx, id); docErr != nil {
			return docErr
		}
		return fmt.Errorf("document %s: %w", id, ErrAlreadyProcessing)
	}
	return nil
}

// FinishProcessing moves a processing document to a terminal state. The
// guard on the current status keeps concurrent attempts from clobbering
// each other.
func (s *Store) FinishProcessing(ctx context.Context, id string, status Status) error {
	if status != StatusCompleted && status != StatusFailed {
		return apperr.Configf("invalid terminal status %q", status)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, status, StatusProcessing)
	if err != nil {
		return fmt.Errorf("finish document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s is not in processing state", id)
	}
	return nil
}

// DocumentStatus is one row of a knowledge status report.
type DocumentStatus struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Status     Status `json:"status"`
}

// KnowledgeStatus aggregates document counts by status for one assistant.
type KnowledgeStatus struct {
	AssistantID     string           `json:"assistant_id"`
	KnowledgeBaseID string           `json:"knowledge_base_id,omitempty"`
	TotalDocuments  int              `json:"total_documents"`
	Pending         int              `json:"pending"`
	Processing      int              `json:"processing"`
	Completed       int              `json:"completed"`
	Failed          int              `json:"failed"`
	Documents       []DocumentStatus `json:"documents"`
}

// KnowledgeStatusFor reports processing totals and the per-document status
// list for an assistant. Read-only; no capability calls.
func (s *Store) KnowledgeStatusFor(ctx context.Context, assistantID string) (KnowledgeStatus, error) {
	if _, err := s.Assistant(ctx, assistantID); err != nil {
		return KnowledgeStatus{}, err
	}

	status := KnowledgeStatus{AssistantID: assistantID, Documents: []DocumentStatus{}}

	var kbID string
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM knowledge_bases WHERE assistant_id = $1", assistantID).Scan(&kbID)
	if errors.Is(err, pgx.ErrNoRows) {
		return status, nil
	}
	if err != nil {
		return KnowledgeStatus{}, fmt.Errorf("query knowledge base: %w", err)
	}
	status.KnowledgeBaseID = kbID

	rows, err := s.pool.Query(ctx, `
		SELECT id, file_path, status FROM documents
		WHERE knowledge_base_id = $1 ORDER BY created_at, id
	`, kbID)
	if err != nil {
		return KnowledgeStatus{}, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ds DocumentStatus
		var path string
		if err := rows.Scan(&ds.DocumentID, &path, &ds.Status); err != nil {
			return KnowledgeStatus{}, fmt.Errorf("scan document: %w", err)
		}
		ds.FileName = baseName(path)
		status.Documents = append(status.Documents, ds)
		status.TotalDocuments++
		switch ds.Status {
		case StatusPending:
			status.Pending++
		case StatusProcessing:
			status.Processing++
		case StatusCompleted:
			status.Completed++
		case StatusFailed:
			status.Failed++
		}
	}
	return status, rows.Err()
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
