package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ryno2390/Co-Lab/internal/auth"
	"github.com/Ryno2390/Co-Lab/internal/config"
	"github.com/Ryno2390/Co-Lab/internal/embedder"
	"github.com/Ryno2390/Co-Lab/internal/ipfs"
	ledgerpg "github.com/Ryno2390/Co-Lab/internal/ledger/postgres"
	"github.com/Ryno2390/Co-Lab/internal/llm"
	"github.com/Ryno2390/Co-Lab/internal/postgres"
	"github.com/Ryno2390/Co-Lab/internal/pricing"
	"github.com/Ryno2390/Co-Lab/internal/router"
	"github.com/Ryno2390/Co-Lab/internal/search"
	"github.com/Ryno2390/Co-Lab/internal/server"
	"github.com/Ryno2390/Co-Lab/internal/service"
	"github.com/Ryno2390/Co-Lab/internal/subai"
	"github.com/Ryno2390/Co-Lab/internal/vectorindex"
)

func main() {
	// Set up structured logging
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
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting Co-Lab service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	// Initialize Qdrant vector index
	index, err := vectorindex.NewQdrantIndex(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer index.Close()
	slog.Info("connected to Qdrant")

	// Initialize Ollama embedder with in-process cache
	embed, err := embedder.NewCachedEmbedder(
		embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaEmbeddingModel,
		}),
		cfg.EmbeddingCacheBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to create embedding cache: %w", err)
	}
	defer embed.Close()
	slog.Info("initialized Ollama embedder", "model", cfg.OllamaEmbeddingModel)

	for _, collection := range []string{cfg.SpecialistCollection, cfg.ContentCollection} {
		if err := index.EnsureCollection(ctx, collection, embed.Dimension()); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", collection, err)
		}
	}

	// Initialize Ollama LLM
	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
	)
	slog.Info("initialized Ollama LLM", "model", cfg.OllamaLLMModel)

	// Initialize content store
	store := ipfs.NewClient(ipfs.WithBaseURL(cfg.IPFSURL))

	// Initialize ledger
	led := ledgerpg.New(db.Pool)

	// Initialize routing
	rt := router.New(embed, index, router.Config{
		Collection:          cfg.SpecialistCollection,
		ConfidenceThreshold: cfg.RoutingConfidenceThreshold,
		Concurrency:         cfg.RoutingConcurrency,
		Classifier:          router.NewLLMClassifier(llmClient, cfg.OllamaLLMModel),
	})

	// Initialize sub-AI invocation
	invoker := subai.NewClient(subai.Config{
		Endpoints:       cfg.SpecialistEndpointMap(),
		DynamicEndpoint: cfg.DynamicEndpoint,
		FixedTimeout:    cfg.FixedInvokeTimeout,
		DynamicTimeout:  cfg.DynamicInvokeTimeout,
		RatePerSecond:   cfg.InvokeRatePerSecond,
	})

	// Initialize search and indexing
	keywordBackend := search.NewKeywordBackend(db.Pool)
	searchSvc := search.NewService(search.Config{
		Embedder:   embed,
		Index:      index,
		Keyword:    keywordBackend,
		Collection: cfg.ContentCollection,
	})
	indexer := search.NewIndexer(search.IndexerConfig{
		Store:      store,
		Embedder:   embed,
		Index:      index,
		DB:         db.Pool,
		Collection: cfg.ContentCollection,
	})

	// Initialize core services
	orchestrator := service.NewOrchestrator(service.OrchestratorConfig{
		Decomposer:  service.NewDecomposer(llmClient, cfg.OllamaLLMModel, nil),
		Router:      rt,
		Tariff:      pricing.DefaultTariff(),
		Ledger:      led,
		Invoker:     invoker,
		Synthesizer: service.NewSynthesizer(llmClient, cfg.OllamaLLMModel, nil),
		Concurrency: cfg.InvokeConcurrency,
	})
	uploadSvc := service.NewUploadService(service.UploadConfig{
		Store:        store,
		Ledger:       led,
		RewardPolicy: pricing.DefaultRewardPolicy(),
		Announcer:    indexer,
	})
	registry := service.NewSpecialistRegistry(embed, index, cfg.SpecialistCollection, nil)

	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.Expiry = cfg.JWTExpiry

	httpServer := server.NewHTTPServer(server.Config{
		Port:           cfg.HTTPPort,
		Pipeline:       orchestrator,
		Ledger:         led,
		Uploader:       uploadSvc,
		Searcher:       searchSvc,
		Registrar:      registry,
		JWTManager:     auth.NewJWTManager(jwtConfig),
		InternalAPIKey: cfg.InternalAPIKey,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start()
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}
