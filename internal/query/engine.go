// Package query implements the retrieval question-answering engine: embed
// the question, search the persisted vector index, and synthesize an answer
// from the retrieved chunks with source attribution.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/localrivet/kbrag/internal/errortypes"
	"github.com/localrivet/kbrag/internal/generation"
	"github.com/localrivet/kbrag/internal/telemetry"
	"github.com/localrivet/kbrag/internal/vector"
	"github.com/localrivet/kbrag/internal/vectorindex"
)

// Source attributes part of an answer to the document chunk it came from.
type Source struct {
	// Label is the document label the chunk was ingested under.
	Label string

	// Excerpt is a preview of the chunk text, roughly 200 characters.
	Excerpt string
}

// Answer is a synthesized response together with the chunks that grounded it.
type Answer struct {
	Text    string
	Sources []Source
}

// Config adjusts engine behavior. Zero values select the defaults.
type Config struct {
	Logger *slog.Logger
}

// Engine answers questions against the persisted vector index. It reloads
// the index on every call, so answers always reflect the latest ingestion.
type Engine struct {
	store     *vectorindex.Store
	embedder  vector.Embedder
	generator generation.Generator
	logger    *slog.Logger
	metrics   *telemetry.MetricsCollector
}

// NewEngine creates an engine over the given index store, embedder, and
// generator. The embedder must be the same instance ingestion used so query
// vectors share its normalization.
func NewEngine(store *vectorindex.Store, embedder vector.Embedder, generator generation.Generator, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		store:     store,
		embedder:  embedder,
		generator: generator,
		logger:    cfg.Logger,
		metrics:   telemetry.NewMetricsCollector(),
	}
}

// Answer retrieves the chunks most similar to the question and synthesizes an
// answer from them. breadth is the number of chunks to retrieve; zero or
// negative retrieves every indexed chunk, which maximizes recall at the cost
// of prompt size.
func (e *Engine) Answer(ctx context.Context, question string, breadth int) (Answer, error) {
	start := time.Now()
	e.metrics.IncrementCounter(telemetry.MetricQueryRequests, 1)
	defer func() {
		e.metrics.RecordTimer(telemetry.MetricQueryDuration, time.Since(start))
	}()

	if !e.store.Exists() {
		return e.fail(errortypes.IndexNotFoundError(nil, "no knowledge base found; ingest a document first"))
	}

	index, err := e.store.Load()
	if err != nil {
		if errors.Is(err, vectorindex.ErrIndexNotFound) {
			return e.fail(errortypes.IndexNotFoundError(err, "no knowledge base found; ingest a document first"))
		}
		return e.fail(errortypes.PersistenceError(err, "failed to load persisted index"))
	}
	if index.Count() == 0 {
		return e.fail(errortypes.IndexNotFoundError(nil, "the knowledge base is empty; ingest a document first"))
	}
	if index.Dimension() != e.embedder.Dimensions() {
		return e.fail(errortypes.PersistenceError(nil, fmt.Sprintf(
			"persisted index dimension %d does not match embedder dimension %d; re-ingest with replace to rebuild",
			index.Dimension(), e.embedder.Dimensions())))
	}

	resolved := breadth
	if resolved <= 0 {
		resolved = index.Count()
		e.logger.Debug("Retrieving all chunks", "chunks", resolved)
	} else if resolved > index.Count() {
		resolved = index.Count()
	}

	queryVector, err := e.embedder.CreateEmbedding(question)
	if err != nil {
		return e.fail(errortypes.EmbeddingError(err, "failed to embed question"))
	}

	searchStart := time.Now()
	results, err := index.Search(queryVector, resolved)
	e.metrics.RecordTimer(telemetry.MetricIndexSearchDuration, time.Since(searchStart))
	if err != nil {
		return e.fail(errortypes.ValidationError(err, "question embedding is incompatible with the index"))
	}

	chunks := make([]string, len(results))
	for i, result := range results {
		chunks[i] = result.Entry.Content
	}
	prompt := buildPrompt(question, chunks)

	e.logger.Debug("Generating answer", "chunks", len(results), "prompt_bytes", len(prompt))
	text, err := e.generator.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, generation.ErrConfigError) {
			return e.fail(errortypes.ConfigError(err, "generation provider is not configured"))
		}
		return e.fail(errortypes.GenerationError(err, "failed to generate answer"))
	}

	sources := make([]Source, len(results))
	for i, result := range results {
		label := result.Entry.Source
		if label == "" {
			label = "Unknown"
		}
		sources[i] = Source{Label: label, Excerpt: excerpt(result.Entry.Content)}
	}

	e.logger.Info("Answered question", "chunks", len(results), "elapsed", time.Since(start))
	return Answer{Text: text, Sources: sources}, nil
}

// GetMetrics returns the metrics collector for this engine.
func (e *Engine) GetMetrics() *telemetry.MetricsCollector {
	return e.metrics
}

func (e *Engine) fail(err error) (Answer, error) {
	e.metrics.IncrementCounter(telemetry.MetricQueryFailures, 1)
	e.logger.Error("Query failed", "error", err)
	return Answer{}, err
}
