package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/localrivet/kbrag/internal/errortypes"
	"github.com/localrivet/kbrag/internal/generation"
	"github.com/localrivet/kbrag/internal/telemetry"
	"github.com/localrivet/kbrag/internal/vector"
	"github.com/localrivet/kbrag/internal/vectorindex"
)

const testDimensions = 16

// mockGenerator implements the generation.Generator interface for testing
type mockGenerator struct {
	returnErr      error
	returnText     string
	capturedPrompt string
}

func (g *mockGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	g.capturedPrompt = prompt
	if g.returnErr != nil {
		return "", g.returnErr
	}
	if g.returnText == "" {
		return "mock answer", nil
	}
	return g.returnText, nil
}

// failingEmbedder fails every embedding call
type failingEmbedder struct {
	dims int
}

func (f *failingEmbedder) Initialize() error { return nil }
func (f *failingEmbedder) Dimensions() int   { return f.dims }

func (f *failingEmbedder) CreateEmbedding(text string) ([]float32, error) {
	return nil, errors.New("mock embedding error")
}

func (f *failingEmbedder) CreateEmbeddings(texts []string) ([][]float32, error) {
	return nil, errors.New("mock embedding error")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, embedder vector.Embedder, gen generation.Generator) (*Engine, *vectorindex.Store) {
	t.Helper()

	store := vectorindex.NewStore(filepath.Join(t.TempDir(), "kb.db"))
	return NewEngine(store, embedder, gen, Config{Logger: quietLogger()}), store
}

// seedStore persists chunks under the given source label, appending when an
// index already exists.
func seedStore(t *testing.T, store *vectorindex.Store, embedder vector.Embedder, source string, chunks ...string) {
	t.Helper()

	var index *vectorindex.Index
	if store.Exists() {
		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("Failed to load index for seeding: %v", err)
		}
		index = loaded
	} else {
		fresh, err := vectorindex.New(embedder.Dimensions())
		if err != nil {
			t.Fatalf("Failed to create index: %v", err)
		}
		index = fresh
	}

	base := index.Count()
	for i, chunk := range chunks {
		embedding, err := embedder.CreateEmbedding(chunk)
		if err != nil {
			t.Fatalf("Failed to embed seed chunk: %v", err)
		}
		entry := vectorindex.Entry{
			ID:        fmt.Sprintf("%s-%d", source, base+i),
			Source:    source,
			Ordinal:   i,
			Content:   chunk,
			Embedding: embedding,
		}
		if err := index.Add(entry); err != nil {
			t.Fatalf("Failed to add seed entry: %v", err)
		}
	}

	if err := store.Save(index); err != nil {
		t.Fatalf("Failed to save seeded index: %v", err)
	}
}

func TestAnswerNoIndex(t *testing.T) {
	engine, _ := newTestEngine(t, vector.NewMockEmbedder(testDimensions), &mockGenerator{})

	_, err := engine.Answer(context.Background(), "What is indexed?", 3)
	if err == nil {
		t.Fatal("Expected error with no persisted index, got nil")
	}
	if !errortypes.IsIndexNotFoundError(err) {
		t.Errorf("Expected index-not-found error, got %v", err)
	}
}

func TestAnswerEmptyIndex(t *testing.T) {
	embedder := vector.NewMockEmbedder(testDimensions)
	engine, store := newTestEngine(t, embedder, &mockGenerator{})

	empty, err := vectorindex.New(testDimensions)
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	if err := store.Save(empty); err != nil {
		t.Fatalf("Failed to save empty index: %v", err)
	}

	_, err = engine.Answer(context.Background(), "What is indexed?", 3)
	if err == nil {
		t.Fatal("Expected error for empty index, got nil")
	}
	if !errortypes.IsIndexNotFoundError(err) {
		t.Errorf("Expected index-not-found error for empty index, got %v", err)
	}
}

func TestAnswerDimensionMismatch(t *testing.T) {
	// Index persisted at a different vector width than the active embedder,
	// as after an embedding model change without a rebuild.
	narrow := vector.NewMockEmbedder(8)
	engine, store := newTestEngine(t, vector.NewMockEmbedder(testDimensions), &mockGenerator{})
	seedStore(t, store, narrow, "old", "Chunk embedded at the old width.")

	_, err := engine.Answer(context.Background(), "What is indexed?", 3)
	if err == nil {
		t.Fatal("Expected error for dimension mismatch, got nil")
	}
	if !errortypes.IsPersistenceError(err) {
		t.Errorf("Expected persistence error for dimension mismatch, got %v", err)
	}
}

func TestAnswerReturnsGeneratedText(t *testing.T) {
	embedder := vector.NewMockEmbedder(testDimensions)
	gen := &mockGenerator{returnText: "The pipeline ingests documents."}
	engine, store := newTestEngine(t, embedder, gen)

	seedStore(t, store, embedder, "guide",
		"Ingestion reads a document and splits it into chunks.",
		"Chunks are embedded and stored in the vector index.",
		"Queries retrieve the closest chunks and synthesize an answer.")

	answer, err := engine.Answer(context.Background(), "How does ingestion work?", 2)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	if answer.Text != "The pipeline ingests documents." {
		t.Errorf("Text = %q, want the generated completion", answer.Text)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("Sources = %d, want 2", len(answer.Sources))
	}
	for _, source := range answer.Sources {
		if source.Label != "guide" {
			t.Errorf("Source label = %q, want %q", source.Label, "guide")
		}
		if source.Excerpt == "" {
			t.Error("Source has empty excerpt")
		}
	}
}

func TestAnswerPromptContents(t *testing.T) {
	embedder := vector.NewMockEmbedder(testDimensions)
	gen := &mockGenerator{}
	engine, store := newTestEngine(t, embedder, gen)

	chunks := []string{
		"The index persists to a single SQLite file.",
		"Saving rewrites all rows in one transaction.",
	}
	seedStore(t, store, embedder, "storage", chunks...)

	question := "Where does the index live?"
	if _, err := engine.Answer(context.Background(), question, 0); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	prompt := gen.capturedPrompt
	if !strings.Contains(prompt, "USER QUESTION: "+question) {
		t.Error("Prompt is missing the verbatim question")
	}
	for _, chunk := range chunks {
		if !strings.Contains(prompt, chunk) {
			t.Errorf("Prompt is missing retrieved chunk %q", chunk)
		}
	}
	if !strings.Contains(prompt, "Based on the provided documents, I don't have enough information to answer this question.") {
		t.Error("Prompt is missing the refusal instruction")
	}
	if !strings.Contains(prompt, "DOCUMENT EXCERPTS:") {
		t.Error("Prompt is missing the excerpts section")
	}
	if !strings.Contains(prompt, "ANSWER (synthesized from the documents above):") {
		t.Error("Prompt is missing the answer cue")
	}
}

func TestAnswerBreadthAll(t *testing.T) {
	embedder := vector.NewMockEmbedder(testDimensions)
	engine, store := newTestEngine(t, embedder, &mockGenerator{})

	var first, second []string
	for i := 0; i < 10; i++ {
		first = append(first, fmt.Sprintf("Document A fact %d.", i))
	}
	for i := 0; i < 5; i++ {
		second = append(second, fmt.Sprintf("Document B fact %d.", i))
	}
	seedStore(t, store, embedder, "a", first...)
	seedStore(t, store, embedder, "b", second...)

	answer, err := engine.Answer(context.Background(), "What facts are recorded?", 0)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(answer.Sources) != 15 {
		t.Errorf("Sources = %d, want all 15 chunks", len(answer.Sources))
	}
}

func TestAnswerBreadthClamped(t *testing.T) {
	embedder := vector.NewMockEmbedder(testDimensions)
	engine, store := newTestEngine(t, embedder, &mockGenerator{})

	seedStore(t, store, embedder, "guide",
		"First chunk.", "Second chunk.", "Third chunk.")

	t.Run("breadth above count", func(t *testing.T) {
		answer, err := engine.Answer(context.Background(), "Anything?", 100)
		if err != nil {
			t.Fatalf("Answer failed: %v", err)
		}
		if len(answer.Sources) != 3 {
			t.Errorf("Sources = %d, want clamp to 3", len(answer.Sources))
		}
	})

	t.Run("breadth of one", func(t *testing.T) {
		answer, err := engine.Answer(context.Background(), "Anything?", 1)
		if err != nil {
			t.Fatalf("Answer failed: %v", err)
		}
		if len(answer.Sources) != 1 {
			t.Errorf("Sources = %d, want 1", len(answer.Sources))
		}
	})
}

func TestAnswerClosestChunkFirst(t *testing.T) {
	embedder := vector.NewMockEmbedder(testDimensions)
	engine, store := newTestEngine(t, embedder, &mockGenerator{})

	target := "Backups run nightly at two."
	seedStore(t, store, embedder, "ops",
		"Deployments ship from the main branch.",
		target,
		"Alerts page the on-call engineer.")

	// The mock embedder is deterministic, so querying with a chunk's own text
	// must score that chunk highest.
	answer, err := engine.Answer(context.Background(), target, 1)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("Sources = %d, want 1", len(answer.Sources))
	}
	if answer.Sources[0].Excerpt != target {
		t.Errorf("Top source excerpt = %q, want the queried chunk", answer.Sources[0].Excerpt)
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	embedder := vector.NewMockEmbedder(testDimensions)
	gen := &mockGenerator{returnErr: errors.New("mock generation error")}
	engine, store := newTestEngine(t, embedder, gen)

	seedStore(t, store, embedder, "guide", "Only one chunk.")

	_, err := engine.Answer(context.Background(), "Anything?", 1)
	if err == nil {
		t.Fatal("Expected error when generation fails, got nil")
	}
	if !errortypes.IsGenerationError(err) {
		t.Errorf("Expected generation error, got %v", err)
	}
	if got := engine.GetMetrics().GetCounter(telemetry.MetricQueryFailures); got != 1 {
		t.Errorf("Failure counter = %d, want 1", got)
	}
}

func TestAnswerConfigurationError(t *testing.T) {
	embedder := vector.NewMockEmbedder(testDimensions)
	gen := &mockGenerator{
		returnErr: fmt.Errorf("failed to initialize generator: %w", generation.ErrConfigError),
	}
	engine, store := newTestEngine(t, embedder, gen)

	seedStore(t, store, embedder, "guide", "Only one chunk.")

	_, err := engine.Answer(context.Background(), "Anything?", 1)
	if err == nil {
		t.Fatal("Expected error for unconfigured generator, got nil")
	}
	if !errortypes.IsConfigError(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestAnswerEmbedderFailure(t *testing.T) {
	good := vector.NewMockEmbedder(testDimensions)
	store := vectorindex.NewStore(filepath.Join(t.TempDir(), "kb.db"))
	seedStore(t, store, good, "guide", "Only one chunk.")

	engine := NewEngine(store, &failingEmbedder{dims: testDimensions}, &mockGenerator{}, Config{Logger: quietLogger()})

	_, err := engine.Answer(context.Background(), "Anything?", 1)
	if err == nil {
		t.Fatal("Expected error when embedding fails, got nil")
	}
	if !errortypes.IsEmbeddingError(err) {
		t.Errorf("Expected embedding error, got %v", err)
	}
}
