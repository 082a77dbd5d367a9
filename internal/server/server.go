// Package server provides the MCP server implementation for the kbrag service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/localrivet/gomcp/server"
	"github.com/localrivet/kbrag/internal/errortypes"
	"github.com/localrivet/kbrag/internal/ingest"
	"github.com/localrivet/kbrag/internal/query"
	"github.com/localrivet/kbrag/internal/tools"
	"github.com/localrivet/kbrag/internal/vectorindex"
)

// Common server error types
var (
	ErrServerNotInitialized = errors.New("server not initialized")
	ErrMissingDependencies  = errors.New("one or more required dependencies are nil")
)

// MCPKnowledgeToolServer implements the KnowledgeToolServer interface
// for handling MCP tool calls related to document ingestion and
// retrieval-augmented answering.
type MCPKnowledgeToolServer struct {
	pipeline  *ingest.Pipeline
	engine    *query.Engine
	store     *vectorindex.Store
	mcpServer server.Server
}

// NewKnowledgeToolServer creates a new MCPKnowledgeToolServer instance.
func NewKnowledgeToolServer(pipeline *ingest.Pipeline, engine *query.Engine, store *vectorindex.Store) *MCPKnowledgeToolServer {
	return &MCPKnowledgeToolServer{
		pipeline: pipeline,
		engine:   engine,
		store:    store,
	}
}

// Initialize initializes the server with dependencies and configurations.
func (s *MCPKnowledgeToolServer) Initialize() error {
	slog.Info("Initializing MCP Knowledge Tool Server")

	if s.pipeline == nil || s.engine == nil || s.store == nil {
		return errortypes.ConfigError(ErrMissingDependencies, "server initialization failed")
	}

	// Create the MCP server
	srv := server.NewServer("kbrag")

	// Register ingest_document tool
	srv = srv.Tool(tools.ToolIngestDocument, "Ingest a document into the knowledge base",
		s.handleIngestDocument)

	// Register query_knowledge tool
	srv = srv.Tool(tools.ToolQueryKnowledge, "Answer a question from the ingested documents",
		s.handleQueryKnowledge)

	// Register index_stats tool
	srv = srv.Tool(tools.ToolIndexStats, "Report the state of the persisted vector index",
		s.handleIndexStats)

	s.mcpServer = srv
	slog.Info("MCP Knowledge Tool Server initialized successfully", "tool_count", 3)
	return nil
}

// Start starts the MCP server on the specified transport.
func (s *MCPKnowledgeToolServer) Start() error {
	if s.mcpServer == nil {
		return errortypes.ConfigError(ErrServerNotInitialized, "cannot start server")
	}

	slog.Info("Starting MCP Knowledge Tool Server")

	// Start the server using stdio transport
	stdioServer := s.mcpServer.AsStdio()
	return stdioServer.Run()
}

// Stop gracefully shuts down the MCP server.
func (s *MCPKnowledgeToolServer) Stop() error {
	slog.Info("Stopping MCP Knowledge Tool Server")
	// The server will exit when stdin is closed
	return nil
}

// handleIngestDocument handles the ingest_document MCP tool call.
func (s *MCPKnowledgeToolServer) handleIngestDocument(ctx *server.Context, req tools.IngestDocumentRequest) (tools.IngestDocumentResponse, error) {
	slog.Info("Processing ingest_document request", "path", req.Path, "replace_existing", req.ReplaceExisting)

	response := tools.IngestDocumentResponse{
		Status: "success",
	}

	// Validate path
	if strings.TrimSpace(req.Path) == "" {
		err := errortypes.ValidationError(errors.New("path cannot be empty for ingest_document"), "invalid ingest_document request")
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Error = err.Error()
		response.Code = errorCode(err)
		return response, nil
	}

	// Run the ingestion pipeline; its errors are already typed
	slog.Debug("Running ingestion pipeline for ingest_document", "path", req.Path)
	outcome, err := s.pipeline.Ingest(context.Background(), req.Path, req.Source, req.ReplaceExisting)
	if err != nil {
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Error = err.Error()
		response.Code = errorCode(err)
		return response, nil
	}

	// Set response
	response.Ingested = outcome.ChunksIngested
	response.Source = outcome.Source
	response.TimeSeconds = outcome.Elapsed.Seconds()
	slog.Info("Successfully ingested document", "source", outcome.Source, "chunks", outcome.ChunksIngested)

	// Return response
	return response, nil
}

// handleQueryKnowledge handles the query_knowledge MCP tool call.
func (s *MCPKnowledgeToolServer) handleQueryKnowledge(ctx *server.Context, req tools.QueryKnowledgeRequest) (tools.QueryKnowledgeResponse, error) {
	slog.Info("Processing query_knowledge request", "question_length", len(req.Question), "breadth", req.Breadth)

	response := tools.QueryKnowledgeResponse{
		Status: "success",
	}

	// Validate question
	if strings.TrimSpace(req.Question) == "" {
		err := errortypes.ValidationError(errors.New("question cannot be empty for query_knowledge"), "invalid query_knowledge request")
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Error = err.Error()
		response.Code = errorCode(err)
		return response, nil
	}

	// Resolve breadth: an omitted value means the default, a negative
	// value means every chunk in the index
	breadth := req.Breadth
	if breadth == 0 {
		breadth = tools.DefaultQueryBreadth
		slog.Debug("Using default breadth for query_knowledge", "breadth", breadth)
	} else if breadth < 0 {
		breadth = 0
	}

	// Answer the question
	slog.Debug("Answering question for query_knowledge", "breadth", breadth)
	answer, err := s.engine.Answer(context.Background(), req.Question, breadth)
	if err != nil {
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Error = err.Error()
		response.Code = errorCode(err)
		return response, nil
	}

	// Set response
	response.Answer = answer.Text
	response.Sources = make([]tools.SourceRef, len(answer.Sources))
	for i, src := range answer.Sources {
		response.Sources[i] = tools.SourceRef{Source: src.Label, Excerpt: src.Excerpt}
	}
	slog.Info("Successfully answered question", "sources", len(response.Sources))

	// Return response
	return response, nil
}

// handleIndexStats handles the index_stats MCP tool call.
func (s *MCPKnowledgeToolServer) handleIndexStats(ctx *server.Context, req tools.IndexStatsRequest) (tools.IndexStatsResponse, error) {
	slog.Info("Processing index_stats request")

	response := tools.IndexStatsResponse{
		Status: "success",
		Path:   s.store.Path(),
	}

	if !s.store.Exists() {
		slog.Debug("No persisted index found for index_stats", "path", s.store.Path())
		return response, nil
	}
	response.Exists = true

	// Load the index to report entry count and dimension
	index, err := s.store.Load()
	if err != nil {
		err = errortypes.PersistenceError(err, "failed to load index for index_stats").
			WithField("path", s.store.Path())
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Error = err.Error()
		response.Code = errorCode(err)
		return response, nil
	}
	response.Chunks = index.Count()
	response.Dimension = index.Dimension()

	// Report the database file size
	if info, err := os.Stat(s.store.Path()); err == nil {
		response.SizeBytes = info.Size()
	}

	slog.Info("Successfully collected index stats", "chunks", response.Chunks, "dimension", response.Dimension)

	// Return response
	return response, nil
}
