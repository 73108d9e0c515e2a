package api

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oylhq/oyl/apperr"
	"github.com/oylhq/oyl/inference"
	"github.com/oylhq/oyl/ingestion"
	"github.com/oylhq/oyl/routing"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	tenant, err := s.store.CreateTenant(r.Context(), req.Name)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, tenant)
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	workspace, err := s.store.CreateWorkspace(r.Context(), chi.URLParam(r, "tenantID"), req.Name)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, workspace)
}

type createTeammateRequest struct {
	Name                string          `json:"name"`
	OrchestrationConfig json.RawMessage `json:"orchestration_config"`
}

func (s *Server) handleCreateTeammate(w http.ResponseWriter, r *http.Request) {
	var req createTeammateRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	// Reject a broken routing config at creation time instead of at the
	// first query.
	if _, err := routing.ParseStrategy(req.OrchestrationConfig); err != nil {
		s.respondError(w, err)
		return
	}
	teammate, err := s.store.CreateTeammate(r.Context(), chi.URLParam(r, "workspaceID"), req.Name, req.OrchestrationConfig)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, teammate)
}

func (s *Server) handleCreateAssistant(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	assistant, err := s.store.CreateAssistant(r.Context(), chi.URLParam(r, "teammateID"), req.Name)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, assistant)
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.store.Tenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, tenant)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	workspace, err := s.store.Workspace(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, workspace)
}

func (s *Server) handleGetTeammate(w http.ResponseWriter, r *http.Request) {
	teammate, err := s.store.Teammate(r.Context(), chi.URLParam(r, "teammateID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, teammate)
}

func (s *Server) handleGetAssistant(w http.ResponseWriter, r *http.Request) {
	assistant, err := s.store.Assistant(r.Context(), chi.URLParam(r, "assistantID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, assistant)
}

func (s *Server) handleListAssistants(w http.ResponseWriter, r *http.Request) {
	teammateID := chi.URLParam(r, "teammateID")
	if _, err := s.store.Teammate(r.Context(), teammateID); err != nil {
		s.respondError(w, err)
		return
	}
	assistants, err := s.store.Assistants(r.Context(), teammateID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, assistants)
}

// mediaTypes maps accepted upload extensions to the media type handed to
// text extraction. Anything outside this map is rejected.
var mediaTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
}

type uploadResponse struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Status     string `json:"status"`
	ingestion.Stats
}

// handleUpload accepts one multipart file, persists it, and runs the
// ingestion pipeline synchronously before responding.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	assistantID := chi.URLParam(r, "assistantID")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Uploads.MaxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, apperr.Configf("missing or oversized file upload: %v", err))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	mediaType, ok := mediaTypes[ext]
	if !ok {
		s.respondError(w, apperr.Configf("unsupported file type %q", ext))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, apperr.Configf("read upload: %v", err))
		return
	}

	if err := os.MkdirAll(s.cfg.Uploads.Dir, 0o755); err != nil {
		s.respondError(w, err)
		return
	}
	savedPath := filepath.Join(s.cfg.Uploads.Dir, uuid.NewString()+ext)
	if err := os.WriteFile(savedPath, data, 0o644); err != nil {
		s.respondError(w, err)
		return
	}

	// Text-like uploads keep their content inline so ingestion survives
	// the file going missing.
	var rawContent string
	if strings.HasPrefix(mediaType, "text/") {
		rawContent = string(data)
	}

	kb, err := s.store.EnsureKnowledgeBase(r.Context(), assistantID, "default")
	if err != nil {
		s.respondError(w, err)
		return
	}
	doc, err := s.store.AddDocument(r.Context(), kb.ID, savedPath, mediaType, rawContent)
	if err != nil {
		s.respondError(w, err)
		return
	}

	collection, err := s.store.AssistantCollection(r.Context(), assistantID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("file_name", header.Filename),
		zap.String("media_type", mediaType))

	stats, err := s.pipeline.ProcessDocument(r.Context(), doc.ID, collection)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, uploadResponse{
		DocumentID: doc.ID,
		FileName:   header.Filename,
		Status:     "completed",
		Stats:      stats,
	})
}

type processBatchRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req processBatchRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if len(req.DocumentIDs) == 0 {
		s.respondError(w, apperr.Configf("document_ids must not be empty"))
		return
	}

	collection, err := s.store.AssistantCollection(r.Context(), chi.URLParam(r, "assistantID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	result := s.pipeline.ProcessBatch(r.Context(), req.DocumentIDs, collection)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleKnowledgeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.KnowledgeStatusFor(r.Context(), chi.URLParam(r, "assistantID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

type queryRequest struct {
	Query         string `json:"query"`
	InferenceMode string `json:"inference_mode"`
	TopK          int    `json:"top_k"`
}

func (s *Server) handleAssistantQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	response, err := s.orchestrator.Answer(r.Context(), chi.URLParam(r, "assistantID"),
		req.Query, inference.ParseMode(req.InferenceMode), req.TopK)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleTeammateQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	decision, err := s.router.Route(r.Context(), chi.URLParam(r, "teammateID"),
		req.Query, inference.ParseMode(req.InferenceMode), req.TopK)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, decision)
}

type modelInfo struct {
	Role  string `json:"role"`
	Model string `json:"model"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := s.cfg.Models
	s.respondJSON(w, http.StatusOK, []modelInfo{
		{Role: "ocr", Model: models.OCR},
		{Role: "embedding", Model: models.Embedding},
		{Role: "tagging", Model: models.Tagging},
		{Role: "fast_inference", Model: models.Fast},
		{Role: "reasoning_inference", Model: models.Reasoning},
	})
}
