package kbrag

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/localrivet/kbrag/internal/chunker"
	"github.com/localrivet/kbrag/internal/config"
	"github.com/localrivet/kbrag/internal/errortypes"
	"github.com/localrivet/kbrag/internal/generation"
	"github.com/localrivet/kbrag/internal/ingest"
	"github.com/localrivet/kbrag/internal/query"
	"github.com/localrivet/kbrag/internal/reader"
	"github.com/localrivet/kbrag/internal/server"
	"github.com/localrivet/kbrag/internal/vector"
	"github.com/localrivet/kbrag/internal/vectorindex"
)

// Config represents the configuration for the kbrag service.
type Config = config.Config

// fallbackProviderOrder is the probe order for ambient generation
// credentials when building the fallback chain.
var fallbackProviderOrder = []string{"google", "anthropic", "openai", "xai"}

// Server represents the kbrag knowledge-base service.
type Server struct {
	config     *config.Config
	store      *vectorindex.Store
	embedder   vector.Embedder
	generator  generation.Generator
	pipeline   *ingest.Pipeline
	engine     *query.Engine
	toolServer server.KnowledgeToolServer
	logger     *slog.Logger // Logger for this Server instance

	ingestMu sync.Mutex // serializes writes to the single-writer index
}

// ServerOptions defines the options for creating a new Server.
type ServerOptions struct {
	Config     *Config      // Pre-filled config. If nil, ConfigPath is used.
	ConfigPath string       // Path to config file. Used if Config is nil. If both are empty, DefaultConfig() is used.
	Logger     *slog.Logger // External logger. If nil, slog.Default() is used.
}

// Components holds the wired internals of the kbrag service for hosts that
// need direct access without a Server instance.
type Components struct {
	Store     *vectorindex.Store
	Embedder  vector.Embedder
	Generator generation.Generator
	Pipeline  *ingest.Pipeline
	Engine    *query.Engine
}

// IndexStats describes the persisted vector index.
type IndexStats struct {
	Exists    bool
	Chunks    int
	Dimension int
	Path      string
	SizeBytes int64
}

// NewServer creates a new kbrag Server with the given options.
// If opts.Config is provided, it will be used directly.
// Otherwise, if opts.ConfigPath is provided, configuration will be loaded from that path.
// If neither is provided, DefaultConfig() will be used.
// If opts.Logger is nil, slog.Default() will be used.
func NewServer(opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg *Config
	var err error

	if opts.Config != nil {
		cfg = opts.Config
		logger.Info("Using provided Config object for server initialization")
	} else if opts.ConfigPath != "" {
		logger.Info("Loading configuration for server initialization", "path", opts.ConfigPath)
		cfg, err = config.LoadConfigWithPath(opts.ConfigPath)
		if err != nil {
			logger.Error("Failed to load configuration from path", "path", opts.ConfigPath, "error", err)
			return nil, errortypes.ConfigError(err, "Failed to load configuration from path: "+opts.ConfigPath)
		}
	} else {
		logger.Warn("No Config object or ConfigPath provided, using default configuration for server initialization")
		cfg = DefaultConfig()
	}

	parts, err := CreateComponents(cfg, logger)
	if err != nil {
		// CreateComponents already logs the specific error
		logger.Error("Failed to create components during server initialization", "error", err)
		return nil, err
	}

	logger.Info("Initializing knowledge tool server component")
	mcpServer := server.NewKnowledgeToolServer(parts.Pipeline, parts.Engine, parts.Store)
	err = mcpServer.Initialize()
	if err != nil {
		logger.Error("Failed to initialize MCP knowledge tool server component", "error", err)
		return nil, errortypes.ConfigError(err, "Failed to initialize MCP knowledge tool server component")
	}

	logger.Info("kbrag server successfully initialized")
	return &Server{
		config:     cfg,
		store:      parts.Store,
		embedder:   parts.Embedder,
		generator:  parts.Generator,
		pipeline:   parts.Pipeline,
		engine:     parts.Engine,
		toolServer: mcpServer,
		logger:     logger, // Store the resolved logger
	}, nil
}

// DefaultConfig returns the default configuration for the kbrag service.
func DefaultConfig() *Config {
	return config.NewConfig()
}

// Start starts the kbrag service.
func (s *Server) Start() error {
	s.logger.Info("Starting kbrag service")
	return s.toolServer.Start()
}

// Stop stops the kbrag service.
func (s *Server) Stop() error {
	s.logger.Info("Stopping kbrag service")
	err := s.toolServer.Stop()
	if err != nil {
		s.logger.Error("Error stopping tool server", "error", err)
		return err
	}

	s.logger.Info("kbrag service stopped")
	return nil
}

// Ingest runs the document at path through the ingestion pipeline and
// persists the result. Ingest calls are serialized; the index is a
// single-writer structure.
func (s *Server) Ingest(ctx context.Context, path, source string, replaceExisting bool) (ingest.Outcome, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	return s.pipeline.Ingest(ctx, path, source, replaceExisting)
}

// Answer retrieves the closest chunks to the question and generates an
// answer grounded in them. Queries only read the index and are not
// serialized.
func (s *Server) Answer(ctx context.Context, question string, breadth int) (query.Answer, error) {
	return s.engine.Answer(ctx, question, breadth)
}

// Stats reports the state of the persisted vector index.
func (s *Server) Stats() (IndexStats, error) {
	stats := IndexStats{Path: s.store.Path()}
	if !s.store.Exists() {
		return stats, nil
	}
	stats.Exists = true

	index, err := s.store.Load()
	if err != nil {
		return IndexStats{}, errortypes.PersistenceError(err, "failed to load index for stats").WithField("path", s.store.Path())
	}
	stats.Chunks = index.Count()
	stats.Dimension = index.Dimension()

	if info, err := os.Stat(s.store.Path()); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// GetStore returns the vector index store used by the server.
func (s *Server) GetStore() *vectorindex.Store {
	return s.store
}

// GetEmbedder returns the embedder instance used by the server.
func (s *Server) GetEmbedder() vector.Embedder {
	return s.embedder
}

// GetPipeline returns the ingestion pipeline used by the server.
func (s *Server) GetPipeline() *ingest.Pipeline {
	return s.pipeline
}

// GetEngine returns the query engine used by the server.
func (s *Server) GetEngine() *query.Engine {
	return s.engine
}

// CreateComponents creates and initializes the components of the kbrag
// service without creating a server instance. This is useful for hosts that
// need direct access to the pipeline, query engine, and index store.
func CreateComponents(cfg *Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		// NewServer always provides one, but as a public function it is
		// safer to have a fallback.
		logger = slog.Default()
		logger.Debug("CreateComponents called with nil logger, defaulting to slog.Default()")
	}

	logger.Info("Initializing vector index store for CreateComponents", "path", cfg.Index.Path)
	store := vectorindex.NewStore(cfg.Index.Path)

	logger.Info("Initializing embedder for CreateComponents", "provider", cfg.Embedder.Provider, "dimensions", cfg.Embedder.Dimensions)
	embedder, err := vector.Shared(vector.Settings{
		Provider:   cfg.Embedder.Provider,
		APIKey:     cfg.Embedder.ApiKey,
		Model:      cfg.Embedder.Model,
		BaseURL:    cfg.Embedder.BaseURL,
		Dimensions: cfg.Embedder.Dimensions,
	})
	if err != nil {
		logger.Error("Failed to initialize embedder in CreateComponents", "provider", cfg.Embedder.Provider, "error", err)
		return nil, errortypes.ConfigError(err, "Failed to initialize embedder")
	}

	// The generator is built without contacting its provider. Credentials are
	// checked on the first Complete call, so ingestion-only deployments never
	// need a generation key.
	logger.Info("Configuring generator for CreateComponents", "provider", cfg.Generator.Provider, "model", cfg.Generator.Model)
	generator := generation.NewAIGenerator(generation.Config{
		ProviderName: cfg.Generator.Provider,
		ModelID:      cfg.Generator.Model,
		APIKey:       cfg.Generator.ApiKey,
		MaxRetries:   cfg.Generator.MaxRetries,
		Timeout:      time.Duration(cfg.Generator.TimeoutSeconds) * time.Second,
		Fallbacks:    ambientFallbacks(cfg.Generator.Provider),
	})

	pipeline := ingest.NewPipeline(
		reader.NewFileReader(),
		chunker.NewSplitter(cfg.Chunking.TargetSize, cfg.Chunking.Overlap),
		embedder,
		store,
		ingest.Config{
			BatchThreshold: cfg.Ingest.BatchThreshold,
			BatchSize:      cfg.Ingest.BatchSize,
			Logger:         logger,
		},
	)

	engine := query.NewEngine(store, embedder, generator, query.Config{Logger: logger})

	logger.Info("Components successfully initialized via CreateComponents")
	return &Components{
		Store:     store,
		Embedder:  embedder,
		Generator: generator,
		Pipeline:  pipeline,
		Engine:    engine,
	}, nil
}

// ambientFallbacks builds fallback generation credentials from ambient
// environment keys, skipping the primary provider.
func ambientFallbacks(primary string) []generation.ProviderCredential {
	var fallbacks []generation.ProviderCredential
	for _, name := range fallbackProviderOrder {
		if name == primary {
			continue
		}
		key := config.AmbientKey(name)
		if key == "" {
			continue
		}
		fallbacks = append(fallbacks, generation.ProviderCredential{Name: name, APIKey: key})
	}
	return fallbacks
}
