package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/oylhq/oyl/api"
	"github.com/oylhq/oyl/config"
	"github.com/oylhq/oyl/embeddings"
	"github.com/oylhq/oyl/extract"
	"github.com/oylhq/oyl/inference"
	"github.com/oylhq/oyl/ingestion"
	"github.com/oylhq/oyl/llm"
	"github.com/oylhq/oyl/query"
	"github.com/oylhq/oyl/retrieval"
	"github.com/oylhq/oyl/routing"
	"github.com/oylhq/oyl/store"
	"github.com/oylhq/oyl/tagging"
	"github.com/oylhq/oyl/vectorstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	st := store.New(pool, logger)
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	index, err := vectorstore.New(cfg, pool)
	if err != nil {
		return err
	}
	if pg, ok := index.(*vectorstore.PgvectorIndex); ok {
		if err := pg.EnsureSchema(ctx, cfg.VectorStore.Dimension); err != nil {
			return err
		}
	}

	generator, err := llm.NewClient(cfg)
	if err != nil {
		return err
	}
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return err
	}

	extractor := extract.NewExtractor(generator, cfg.Models.OCR, logger)
	tagger := tagging.NewTagger(generator, cfg.Models.Tagging,
		cfg.Tagging.TagsPerChunk, cfg.Tagging.SnippetChars, logger)

	pipeline := ingestion.NewPipeline(st, extractor, tagger, embedder, index,
		cfg.Chunking.Size, cfg.Chunking.Overlap, cfg.Ingestion.BatchConcurrency, logger)

	retriever := retrieval.NewRetriever(tagger, embedder, index, cfg.Retrieval.TopK, logger)
	engine := inference.NewEngine(generator, cfg.Models.Fast, cfg.Models.Reasoning, logger)
	orchestrator := query.NewOrchestrator(st, retriever, engine, cfg.Retrieval.TopK, logger)
	router := routing.NewRouter(st, orchestrator, logger)

	server := api.NewServer(st, pipeline, orchestrator, router, cfg, logger)

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
