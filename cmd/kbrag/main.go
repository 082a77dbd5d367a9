package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/localrivet/kbrag/internal/chunker"
	"github.com/localrivet/kbrag/internal/config"
	"github.com/localrivet/kbrag/internal/errortypes"
	"github.com/localrivet/kbrag/internal/generation"
	"github.com/localrivet/kbrag/internal/ingest"
	"github.com/localrivet/kbrag/internal/logger"
	"github.com/localrivet/kbrag/internal/query"
	"github.com/localrivet/kbrag/internal/reader"
	"github.com/localrivet/kbrag/internal/server"
	"github.com/localrivet/kbrag/internal/vector"
	"github.com/localrivet/kbrag/internal/vectorindex"
)

func main() {
	// Pull ambient credentials from .env before anything reads the environment
	_ = godotenv.Load()

	// Initialize logging first thing
	appLogger := setupLogging()

	appLogger.Info("kbrag MCP Server - Starting...")

	// Load configuration
	cfg, err := config.InitGlobal(config.DefaultConfigFilename)
	if err != nil {
		logger.LogError(err)
		appLogger.Fatal("Failed to load configuration")
	}

	// Configure logging based on config
	if cfg.Logging.Level != "" {
		appLogger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
		appLogger.Info("Log level set to %s", cfg.Logging.Level)
	}

	if cfg.Logging.Format == "json" {
		appLogger.SetFormat(logger.JSON)
		appLogger.Info("Log format set to JSON")
	}

	// Initialize the vector index store
	store := vectorindex.NewStore(cfg.Index.Path)
	storeLogger := appLogger.WithContext("store")
	storeLogger.Info("Vector index store ready at %s", cfg.Index.Path)

	// Initialize the embedder
	emb, err := vector.Shared(vector.Settings{
		Provider:   cfg.Embedder.Provider,
		APIKey:     cfg.Embedder.ApiKey,
		Model:      cfg.Embedder.Model,
		BaseURL:    cfg.Embedder.BaseURL,
		Dimensions: cfg.Embedder.Dimensions,
	})
	embLogger := appLogger.WithContext("embedder")

	if err != nil {
		err = errortypes.ConfigError(err, "Failed to initialize embedder")
		logger.LogError(err)
		appLogger.Fatal("Failed to initialize embedder")
	}
	embLogger.Info("Embedder initialized (%s, %d dimensions)", cfg.Embedder.Provider, emb.Dimensions())

	// Configure the generator. Its provider is contacted lazily on the first
	// completion, so a missing generation key does not block ingestion.
	var fallbacks []generation.ProviderCredential
	for _, name := range []string{"google", "anthropic", "openai", "xai"} {
		if name == cfg.Generator.Provider {
			continue
		}
		if key := config.AmbientKey(name); key != "" {
			fallbacks = append(fallbacks, generation.ProviderCredential{Name: name, APIKey: key})
		}
	}

	gen := generation.NewAIGenerator(generation.Config{
		ProviderName: cfg.Generator.Provider,
		ModelID:      cfg.Generator.Model,
		APIKey:       cfg.Generator.ApiKey,
		MaxRetries:   cfg.Generator.MaxRetries,
		Timeout:      time.Duration(cfg.Generator.TimeoutSeconds) * time.Second,
		Fallbacks:    fallbacks,
	})
	appLogger.WithContext("generator").Info("Generator configured (%s, %d fallbacks)", cfg.Generator.Provider, len(fallbacks))

	// Assemble the ingestion pipeline and query engine
	pipeline := ingest.NewPipeline(
		reader.NewFileReader(),
		chunker.NewSplitter(cfg.Chunking.TargetSize, cfg.Chunking.Overlap),
		emb,
		store,
		ingest.Config{BatchThreshold: cfg.Ingest.BatchThreshold, BatchSize: cfg.Ingest.BatchSize},
	)
	engine := query.NewEngine(store, emb, gen, query.Config{})

	// Initialize the MCP server
	srv := server.NewKnowledgeToolServer(pipeline, engine, store)
	srvLogger := appLogger.WithContext("server")

	err = srv.Initialize()
	if err != nil {
		err = errortypes.ConfigError(err, "Failed to initialize MCP server")
		logger.LogError(err)
		appLogger.Fatal("Failed to initialize MCP server")
	}
	srvLogger.Info("MCP server initialized")

	// Handle graceful shutdown
	setupSignalHandler(appLogger)

	// Start the MCP server (this will block until server is terminated)
	srvLogger.Info("Starting MCP server...")
	if err := srv.Start(); err != nil {
		err = errortypes.APIError(err, "MCP server failed")
		logger.LogError(err)
		appLogger.Fatal("Failed to start MCP server")
	}
}

// setupLogging configures and returns the application logger
func setupLogging() *logger.Logger {
	// Create default configuration
	config := logger.DefaultConfig()

	// Try to get log level from environment variable
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		config.Level = logger.ParseLevel(levelStr)
	}

	// Create and return logger
	appLogger := logger.New(config)
	logger.SetDefaultLogger(appLogger)

	return appLogger
}

// setupSignalHandler sets up a signal handler for graceful shutdown.
func setupSignalHandler(log *logger.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("Received shutdown signal, terminating gracefully...")

		// Every ingestion persists the index before returning, so there is
		// no open state to flush here.
		log.Info("Shutdown complete")
		os.Exit(0)
	}()
}
