package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oylhq/oyl/apperr"
)

func (s *Store) CreateTenant(ctx context.Context, name string) (Tenant, error) {
	t := Tenant{ID: uuid.NewString(), Name: name}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO tenants (id, name) VALUES ($1, $2) RETURNING created_at",
		t.ID, t.Name).Scan(&t.CreatedAt)
	if err != nil {
		return Tenant{}, fmt.Errorf("insert tenant: %w", err)
	}
	return t, nil
}

func (s *Store) Tenant(ctx context.Context, id string) (Tenant, error) {
	var t Tenant
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, created_at FROM tenants WHERE id = $1", id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, apperr.NotFoundf("tenant %s", id)
	}
	if err != nil {
		return Tenant{}, fmt.Errorf("query tenant: %w", err)
	}
	return t, nil
}

func (s *Store) CreateWorkspace(ctx context.Context, tenantID, name string) (Workspace, error) {
	if _, err := s.Tenant(ctx, tenantID); err != nil {
		return Workspace{}, err
	}
	w := Workspace{ID: uuid.NewString(), TenantID: tenantID, Name: name}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO workspaces (id, tenant_id, name) VALUES ($1, $2, $3) RETURNING created_at",
		w.ID, w.TenantID, w.Name).Scan(&w.CreatedAt)
	if err != nil {
		return Workspace{}, fmt.Errorf("insert workspace: %w", err)
	}
	return w, nil
}

func (s *Store) Workspace(ctx context.Context, id string) (Workspace, error) {
	var w Workspace
	err := s.pool.QueryRow(ctx,
		"SELECT id, tenant_id, name, created_at FROM workspaces WHERE id = $1", id).
		Scan(&w.ID, &w.TenantID, &w.Name, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Workspace{}, apperr.NotFoundf("workspace %s", id)
	}
	if err != nil {
		return Workspace{}, fmt.Errorf("query workspace: %w", err)
	}
	return w, nil
}

func (s *Store) CreateTeammate(ctx context.Context, workspaceID, name string, orchestration json.RawMessage) (Teammate, error) {
	if _, err := s.Workspace(ctx, workspaceID); err != nil {
		return Teammate{}, err
	}
	t := Teammate{ID: uuid.NewString(), WorkspaceID: workspaceID, Name: name, OrchestrationConfig: orchestration}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO teammates (id, workspace_id, name, orchestration_config) VALUES ($1, $2, $3, $4) RETURNING created_at",
		t.ID, t.WorkspaceID, t.Name, t.OrchestrationConfig).Scan(&t.CreatedAt)
	if err != nil {
		return Teammate{}, fmt.Errorf("insert teammate: %w", err)
	}
	return t, nil
}

func (s *Store) Teammate(ctx context.Context, id string) (Teammate, error) {
	var t Teammate
	err := s.pool.QueryRow(ctx,
		"SELECT id, workspace_id, name, orchestration_config, created_at FROM teammates WHERE id = $1", id).
		Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.OrchestrationConfig, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Teammate{}, apperr.NotFoundf("teammate %s", id)
	}
	if err != nil {
		return Teammate{}, fmt.Errorf("query teammate: %w", err)
	}
	return t, nil
}

func (s *Store) CreateAssistant(ctx context.Context, teammateID, name string) (Assistant, error) {
	if _, err := s.Teammate(ctx, teammateID); err != nil {
		return Assistant{}, err
	}
	a := Assistant{ID: uuid.NewString(), TeammateID: teammateID, Name: name}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO assistants (id, teammate_id, name) VALUES ($1, $2, $3) RETURNING created_at",
		a.ID, a.TeammateID, a.Name).Scan(&a.CreatedAt)
	if err != nil {
		return Assistant{}, fmt.Errorf("insert assistant: %w", err)
	}
	return a, nil
}

func (s *Store) Assistant(ctx context.Context, id string) (Assistant, error) {
	var a Assistant
	err := s.pool.QueryRow(ctx,
		"SELECT id, teammate_id, name, created_at FROM assistants WHERE id = $1", id).
		Scan(&a.ID, &a.TeammateID, &a.Name, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assistant{}, apperr.NotFoundf("assistant %s", id)
	}
	if err != nil {
		return Assistant{}, fmt.Errorf("query assistant: %w", err)
	}
	return a, nil
}

// Assistants lists a teammate's assistants in creation order.
func (s *Store) Assistants(ctx context.Context, teammateID string) ([]Assistant, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, teammate_id, name, created_at FROM assistants WHERE teammate_id = $1 ORDER BY created_at, id",
		teammateID)
	if err != nil {
		return nil, fmt.Errorf("query assistants: %w", err)
	}
	defer rows.Close()

	assistants := make([]Assistant, 0)
	for rows.Next() {
		var a Assistant
		if err := rows.Scan(&a.ID, &a.TeammateID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assistant: %w", err)
		}
		assistants = append(assistants, a)
	}
	return assistants, rows.Err()
}

// AssistantCollection resolves an assistant's vector index collection name,
// verifying the assistant exists.
func (s *Store) AssistantCollection(ctx context.Context, assistantID string) (string, error) {
	if _, err := s.Assistant(ctx, assistantID); err != nil {
		return "", err
	}
	return CollectionName(assistantID), nil
}

// CollectionName is the vector index partition for one assistant.
func CollectionName(assistantID string) string {
	return "assistant_" + assistantID
}

// EnsureKnowledgeBase returns the assistant's knowledge base, creating it on
// first use.
func (s *Store) EnsureKnowledgeBase(ctx context.Context, assistantID, name string) (KnowledgeBase, error) {
	if _, err := s.Assistant(ctx, assistantID); err != nil {
		return KnowledgeBase{}, err
	}

	var kb KnowledgeBase
	err := s.pool.QueryRow(ctx,
		"SELECT id, assistant_id, name, created_at FROM knowledge_bases WHERE assistant_id = $1", assistantID).
		Scan(&kb.ID, &kb.AssistantID, &kb.Name, &kb.CreatedAt)
	if err == nil {
		return kb, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return KnowledgeBase{}, fmt.Errorf("query knowledge base: %w", err)
	}

	kb = KnowledgeBase{ID: uuid.NewString(), AssistantID: assistantID, Name: name}
	err = s.pool.QueryRow(ctx,
		"INSERT INTO knowledge_bases (id, assistant_id, name) VALUES ($1, $2, $3) RETURNING created_at",
		kb.ID, kb.AssistantID, kb.Name).Scan(&kb.CreatedAt)
	if err != nil {
		return KnowledgeBase{}, fmt.Errorf("insert knowledge base: %w", err)
	}
	return kb, nil
}
