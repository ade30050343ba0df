package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexrag/lexrag/internal/auth"
	"github.com/lexrag/lexrag/internal/config"
	"github.com/lexrag/lexrag/internal/crawler"
	"github.com/lexrag/lexrag/internal/embedder"
	"github.com/lexrag/lexrag/internal/ingestion"
	"github.com/lexrag/lexrag/internal/llm"
	"github.com/lexrag/lexrag/internal/repository"
	"github.com/lexrag/lexrag/internal/repository/postgres"
	"github.com/lexrag/lexrag/internal/rerank"
	"github.com/lexrag/lexrag/internal/retrieval"
	"github.com/lexrag/lexrag/internal/server"
	"github.com/lexrag/lexrag/internal/service"
	"github.com/lexrag/lexrag/internal/vectorstore"
	"github.com/lexrag/lexrag/internal/websearch"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := slog.Default()

	slog.Info("starting lexrag service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	documentRepo := postgres.NewDocumentRepo(db)

	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})
	slog.Info("initialized Ollama embedder", "model", cfg.OllamaEmbeddingModel)

	vectorStore, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, embed.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	slog.Info("connected to Qdrant", "collection", cfg.Collection)

	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
	)
	slog.Info("initialized Ollama LLM", "model", cfg.OllamaLLMModel)

	scorer := rerank.DefaultProvider(rerank.ProviderConfig{
		Mode:    cfg.RerankMode,
		BaseURL: cfg.RerankURL,
		Model:   cfg.RerankModel,
	})
	reranker := rerank.NewReranker(scorer)
	slog.Info("initialized reranker", "mode", cfg.RerankMode)

	sparse := retrieval.NewHashedBoW()
	retriever := retrieval.NewRetriever(embed, vectorStore, retrieval.WithSparseVectorizer(sparse))

	var webOpts []websearch.Option
	if len(cfg.WebSearchDomains) > 0 {
		webOpts = append(webOpts, websearch.WithDomains(cfg.WebSearchDomains))
	}
	web := websearch.NewSearcher(cfg.TavilyAPIKey, webOpts...)
	if cfg.TavilyAPIKey == "" {
		slog.Info("web fallback disabled: no Tavily API key configured")
	}

	pipeline := ingestion.NewPipeline(ingestion.PipelineConfig{
		Chunker: repository.ChunkerConfig{
			Method:     cfg.ChunkMethod,
			TargetSize: cfg.ChunkTargetSize,
			MaxSize:    cfg.ChunkMaxSize,
			Overlap:    cfg.ChunkOverlap,
		},
	})

	var fetcher crawler.Fetcher = crawler.NewHTTPFetcher()
	if cfg.UseHeadless {
		fetcher = crawler.NewFallbackFetcher(fetcher, crawler.NewHeadlessFetcher())
	}

	defaults := service.SearchDefaults{
		TopN: cfg.DefaultTopN,
		PreK: cfg.DefaultPreK,
		MMRK: cfg.DefaultMMRK,
	}

	searchSvc := service.NewSearchService(retriever, reranker, defaults, logger)
	answerSvc := service.NewAnswerService(retriever, reranker, web, llmClient, service.AnswerConfig{
		Model:         cfg.OllamaLLMModel,
		Defaults:      defaults,
		WebFallbackAt: cfg.WebFallbackAt,
		WebMaxResults: cfg.WebMaxResults,
	}, logger)
	documentSvc := service.NewDocumentService(documentRepo, pipeline, embed, vectorStore, sparse, fetcher, logger)

	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.Expiry = cfg.JWTExpiry
	jwtManager := auth.NewJWTManager(jwtCfg)

	httpServer := server.New(server.Config{
		Port:       cfg.HTTPPort,
		APIKey:     cfg.APIKey,
		Logger:     logger,
		JWTManager: jwtManager,
		Search:     searchSvc,
		Answer:     answerSvc,
		Documents:  documentSvc,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}


// Ensure interfaces are satisfied at compile time
var (
	_ repository.DocumentRepository = (*postgres.DocumentRepo)(nil)
	_ vectorstore.VectorStore       = (*vectorstore.QdrantStore)(nil)
	_ embedder.Embedder             = (*embedder.OllamaEmbedder)(nil)
	_ llm.LLM                       = (*llm.OllamaClient)(nil)
	_ service.Retriever             = (*retrieval.Retriever)(nil)
	_ service.CandidateReranker     = (*rerank.Reranker)(nil)
	_ service.WebSearcher           = (*websearch.Searcher)(nil)
)
