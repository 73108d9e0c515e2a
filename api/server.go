// Package api exposes the platform over HTTP: entity management, knowledge
// upload and processing, and query endpoints for assistants and teammates.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/oylhq/oyl/apperr"
	"github.com/oylhq/oyl/config"
	"github.com/oylhq/oyl/ingestion"
	"github.com/oylhq/oyl/query"
	"github.com/oylhq/oyl/routing"
	"github.com/oylhq/oyl/store"
)

// Server holds the HTTP surface and everything the handlers call into.
type Server struct {
	store        *store.Store
	pipeline     *ingestion.Pipeline
	orchestrator *query.Orchestrator
	router       *routing.Router
	cfg          *config.Config
	logger       *zap.Logger

	http *http.Server
}

func NewServer(
	st *store.Store,
	pipeline *ingestion.Pipeline,
	orchestrator *query.Orchestrator,
	router *routing.Router,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		store:        st,
		pipeline:     pipeline,
		orchestrator: orchestrator,
		router:       router,
		cfg:          cfg,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tenants", s.handleCreateTenant)
		r.Get("/tenants/{tenantID}", s.handleGetTenant)
		r.Post("/tenants/{tenantID}/workspaces", s.handleCreateWorkspace)
		r.Get("/workspaces/{workspaceID}", s.handleGetWorkspace)
		r.Post("/workspaces/{workspaceID}/teammates", s.handleCreateTeammate)
		r.Get("/teammates/{teammateID}", s.handleGetTeammate)
		r.Post("/teammates/{teammateID}/assistants", s.handleCreateAssistant)
		r.Get("/teammates/{teammateID}/assistants", s.handleListAssistants)
		r.Get("/assistants/{assistantID}", s.handleGetAssistant)
		r.Post("/teammates/{teammateID}/query", s.handleTeammateQuery)

		r.Post("/assistants/{assistantID}/knowledge/upload", s.handleUpload)
		r.Post("/assistants/{assistantID}/knowledge/process-batch", s.handleProcessBatch)
		r.Get("/assistants/{assistantID}/knowledge/status", s.handleKnowledgeStatus)
		r.Post("/assistants/{assistantID}/query", s.handleAssistantQuery)

		r.Get("/models", s.handleModels)
	})

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // synchronous ingestion and reasoning runs are slow
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

// respondError maps the error taxonomy onto HTTP statuses: missing
// entities are 404, configuration problems 400, failed external
// capabilities 503, a document already being processed 409, everything
// else 500.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case apperr.IsConfig(err):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrAlreadyProcessing):
		status = http.StatusConflict
	case apperr.IsCapability(err):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Configf("invalid request body: %v", err)
	}
	return nil
}
