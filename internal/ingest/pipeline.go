// Package ingest implements the document ingestion pipeline: read a file,
// chunk its text, embed the chunks, and persist them into the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/localrivet/kbrag/internal/chunker"
	"github.com/localrivet/kbrag/internal/errortypes"
	"github.com/localrivet/kbrag/internal/reader"
	"github.com/localrivet/kbrag/internal/telemetry"
	"github.com/localrivet/kbrag/internal/util"
	"github.com/localrivet/kbrag/internal/vector"
	"github.com/localrivet/kbrag/internal/vectorindex"
)

const (
	// DefaultBatchThreshold is the chunk count above which a run switches to
	// batched embedding.
	DefaultBatchThreshold = 50

	// DefaultBatchSize is the number of chunks embedded per batch once the
	// threshold is crossed.
	DefaultBatchSize = 25
)

// Outcome reports the result of one ingestion run.
type Outcome struct {
	// ChunksIngested is the knowledge base's total chunk count after the run,
	// not just the number this document added.
	ChunksIngested int

	// Source is the label the document's entries were stored under.
	Source string

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Config adjusts pipeline behavior. Zero values select the defaults.
type Config struct {
	BatchThreshold int
	BatchSize      int
	Logger         *slog.Logger
}

// Pipeline ingests documents into the persisted vector index. It does not
// serialize concurrent calls itself; callers that ingest from multiple
// goroutines must coordinate.
type Pipeline struct {
	reader         reader.Reader
	splitter       *chunker.Splitter
	embedder       vector.Embedder
	store          *vectorindex.Store
	batchThreshold int
	batchSize      int
	logger         *slog.Logger
	metrics        *telemetry.MetricsCollector
}

// NewPipeline creates a pipeline over the given reader, splitter, embedder,
// and index store.
func NewPipeline(rd reader.Reader, splitter *chunker.Splitter, embedder vector.Embedder, store *vectorindex.Store, cfg Config) *Pipeline {
	if cfg.BatchThreshold <= 0 {
		cfg.BatchThreshold = DefaultBatchThreshold
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		reader:         rd,
		splitter:       splitter,
		embedder:       embedder,
		store:          store,
		batchThreshold: cfg.BatchThreshold,
		batchSize:      cfg.BatchSize,
		logger:         cfg.Logger,
		metrics:        telemetry.NewMetricsCollector(),
	}
}

// Ingest reads the document at path, chunks and embeds its text, and persists
// the entries under sourceLabel (the path itself when the label is empty).
// With replaceExisting the previously persisted index is discarded first;
// otherwise new entries are appended to it. A document that yields no chunks
// leaves the index untouched.
func (p *Pipeline) Ingest(ctx context.Context, path, sourceLabel string, replaceExisting bool) (Outcome, error) {
	start := time.Now()

	source := sourceLabel
	if source == "" {
		source = path
	}

	p.metrics.IncrementCounter(telemetry.MetricIngestDocuments, 1)
	defer func() {
		p.metrics.RecordTimer(telemetry.MetricIngestDuration, time.Since(start))
	}()

	p.logger.Debug("Reading document", "path", path)
	text, err := p.reader.Read(path)
	if err != nil {
		return p.fail(source, start, err)
	}

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		p.logger.Info("Document produced no chunks, index untouched", "source", source)
		return Outcome{Source: source, Elapsed: time.Since(start)}, nil
	}
	p.logger.Debug("Chunked document", "source", source, "chunks", len(chunks))

	index, err := p.baseIndex(replaceExisting)
	if err != nil {
		return p.fail(source, start, err)
	}
	if index.Dimension() != p.embedder.Dimensions() {
		err := errortypes.PersistenceError(nil, fmt.Sprintf(
			"persisted index dimension %d does not match embedder dimension %d; re-ingest with replace to rebuild",
			index.Dimension(), p.embedder.Dimensions()))
		return p.fail(source, start, err)
	}

	if err := p.embedAndAdd(ctx, index, source, chunks); err != nil {
		return p.fail(source, start, err)
	}

	if err := p.store.Save(index); err != nil {
		return p.fail(source, start, errortypes.PersistenceError(err, "failed to persist index"))
	}
	p.metrics.IncrementCounter(telemetry.MetricIndexSaves, 1)
	p.metrics.IncrementCounter(telemetry.MetricIngestChunks, int64(len(chunks)))
	p.metrics.SetGauge(telemetry.MetricIndexEntries, float64(index.Count()))

	elapsed := time.Since(start)
	p.logger.Info("Ingested document",
		"source", source, "added", len(chunks), "total", index.Count(), "elapsed", elapsed)

	return Outcome{
		ChunksIngested: index.Count(),
		Source:         source,
		Elapsed:        elapsed,
	}, nil
}

// GetMetrics returns the metrics collector for this pipeline.
func (p *Pipeline) GetMetrics() *telemetry.MetricsCollector {
	return p.metrics
}

// baseIndex returns the index a run starts from: a fresh one when replacing
// or when nothing is persisted yet, the loaded one otherwise. A first
// ingestion into an empty deployment therefore behaves the same under either
// flag value.
func (p *Pipeline) baseIndex(replaceExisting bool) (*vectorindex.Index, error) {
	if replaceExisting {
		if err := p.store.Delete(); err != nil {
			return nil, errortypes.PersistenceError(err, "failed to delete persisted index")
		}
		return p.freshIndex()
	}

	index, err := p.store.Load()
	if err == nil {
		return index, nil
	}
	if errors.Is(err, vectorindex.ErrIndexNotFound) {
		return p.freshIndex()
	}
	return nil, errortypes.PersistenceError(err, "failed to load persisted index")
}

func (p *Pipeline) freshIndex() (*vectorindex.Index, error) {
	index, err := vectorindex.New(p.embedder.Dimensions())
	if err != nil {
		return nil, errortypes.EmbeddingError(err, "embedder reports an unusable dimension")
	}
	return index, nil
}

// embedAndAdd embeds chunks and appends them to the index. Above the batch
// threshold it proceeds in fixed-size batches, so at most one batch of
// vectors is in flight outside the index at any time.
func (p *Pipeline) embedAndAdd(ctx context.Context, index *vectorindex.Index, source string, chunks []string) error {
	batchSize := len(chunks)
	if len(chunks) > p.batchThreshold {
		batchSize = p.batchSize
		p.logger.Debug("Batching embedding calls", "chunks", len(chunks), "batch_size", batchSize)
	}

	for offset := 0; offset < len(chunks); offset += batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := offset + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		p.metrics.IncrementCounter(telemetry.MetricEmbedderCalls, 1)
		p.metrics.IncrementCounter(telemetry.MetricEmbedderTexts, int64(len(batch)))
		vectors, err := p.embedder.CreateEmbeddings(batch)
		if err != nil {
			p.metrics.IncrementCounter(telemetry.MetricEmbedderFailures, 1)
			return errortypes.EmbeddingError(err, "failed to embed chunks")
		}
		if len(vectors) != len(batch) {
			p.metrics.IncrementCounter(telemetry.MetricEmbedderFailures, 1)
			return errortypes.EmbeddingError(nil, fmt.Sprintf(
				"embedder returned %d vectors for %d chunks", len(vectors), len(batch)))
		}

		entries := make([]vectorindex.Entry, len(batch))
		for i, chunk := range batch {
			ordinal := offset + i
			entries[i] = vectorindex.Entry{
				ID:        util.GenerateHash(chunk, int64(ordinal)),
				Source:    source,
				Ordinal:   ordinal,
				Content:   chunk,
				Embedding: vectors[i],
			}
		}

		if err := index.Add(entries...); err != nil {
			return errortypes.EmbeddingError(err, "embedder produced vectors the index rejected")
		}
	}

	return nil
}

func (p *Pipeline) fail(source string, start time.Time, err error) (Outcome, error) {
	p.metrics.IncrementCounter(telemetry.MetricIngestFailures, 1)
	p.logger.Error("Ingestion failed", "source", source, "error", err)
	return Outcome{Source: source, Elapsed: time.Since(start)}, err
}
