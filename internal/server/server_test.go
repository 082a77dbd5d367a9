package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/localrivet/kbrag/internal/chunker"
	"github.com/localrivet/kbrag/internal/ingest"
	"github.com/localrivet/kbrag/internal/query"
	"github.com/localrivet/kbrag/internal/reader"
	"github.com/localrivet/kbrag/internal/tools"
	"github.com/localrivet/kbrag/internal/vector"
	"github.com/localrivet/kbrag/internal/vectorindex"
)

const (
	testTargetSize = 200
	testOverlap    = 40
	testDimensions = 16
)

var testError = errors.New("test error")

// MockGenerator implements the generation.Generator interface for testing
type MockGenerator struct {
	ReturnText  string
	ReturnError bool
	Prompts     []string
}

func (m *MockGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if m.ReturnError {
		return "", testError
	}
	m.Prompts = append(m.Prompts, prompt)
	if m.ReturnText != "" {
		return m.ReturnText, nil
	}
	return "mock answer", nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires a tool server over a temporary index with deterministic
// embeddings and a mock generator, initialized and ready for handler calls.
func newTestServer(t *testing.T, gen *MockGenerator) (*MCPKnowledgeToolServer, *vectorindex.Store) {
	t.Helper()

	store := vectorindex.NewStore(filepath.Join(t.TempDir(), "kb.db"))
	embedder := vector.NewMockEmbedder(testDimensions)
	splitter := chunker.NewSplitter(testTargetSize, testOverlap)

	pipeline := ingest.NewPipeline(reader.NewFileReader(), splitter, embedder, store,
		ingest.Config{Logger: quietLogger()})
	engine := query.NewEngine(store, embedder, gen, query.Config{Logger: quietLogger()})

	srv := NewKnowledgeToolServer(pipeline, engine, store)
	if err := srv.Initialize(); err != nil {
		t.Fatalf("Failed to initialize server: %v", err)
	}
	return srv, store
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test document: %v", err)
	}
	return path
}

// sampleText builds paragraphs sized so each becomes roughly one chunk at the
// test target size.
func sampleText(paragraphs int) string {
	var b strings.Builder
	for i := 1; i <= paragraphs; i++ {
		fmt.Fprintf(&b, "Paragraph %02d covers retrieval behavior. %s\n\n",
			i, strings.Repeat("It records one more detail. ", 5))
	}
	return b.String()
}

// TestIngestDocument tests the ingest_document tool handler
func TestIngestDocument(t *testing.T) {
	srv, store := newTestServer(t, &MockGenerator{})

	path := writeDoc(t, "doc.txt", sampleText(3))
	req := tools.IngestDocumentRequest{
		Path: path,
	}

	// Call handler directly
	response, err := srv.handleIngestDocument(nil, req)
	if err != nil {
		t.Fatalf("Handler returned error: %v", err)
	}

	// Verify response
	if response.Status != "success" {
		t.Fatalf("Expected status 'success', got '%s' (%s)", response.Status, response.Error)
	}
	if response.Ingested == 0 {
		t.Error("Expected a non-zero chunk count")
	}
	if response.Source != path {
		t.Errorf("Expected source '%s', got '%s'", path, response.Source)
	}
	if response.Error != "" || response.Code != "" {
		t.Errorf("Expected empty error fields, got error='%s' code='%s'", response.Error, response.Code)
	}

	// Verify the index was persisted
	if !store.Exists() {
		t.Error("Expected a persisted index after ingestion")
	}
}

// TestIngestDocumentSourceLabel tests that an explicit source label is
// recorded instead of the path
func TestIngestDocumentSourceLabel(t *testing.T) {
	srv, _ := newTestServer(t, &MockGenerator{})

	req := tools.IngestDocumentRequest{
		Path:   writeDoc(t, "doc.txt", sampleText(2)),
		Source: "handbook",
	}

	response, err := srv.handleIngestDocument(nil, req)
	if err != nil {
		t.Fatalf("Handler returned error: %v", err)
	}

	if response.Status != "success" {
		t.Fatalf("Expected status 'success', got '%s' (%s)", response.Status, response.Error)
	}
	if response.Source != "handbook" {
		t.Errorf("Expected source 'handbook', got '%s'", response.Source)
	}
}

// TestQueryKnowledge tests the query_knowledge tool handler
func TestQueryKnowledge(t *testing.T) {
	gen := &MockGenerator{ReturnText: "The cache warms at startup."}
	srv, _ := newTestServer(t, gen)

	ingestReq := tools.IngestDocumentRequest{
		Path:   writeDoc(t, "doc.txt", sampleText(3)),
		Source: "handbook",
	}
	if resp, err := srv.handleIngestDocument(nil, ingestReq); err != nil || resp.Status != "success" {
		t.Fatalf("Failed to ingest test document: err=%v status=%s error=%s", err, resp.Status, resp.Error)
	}

	req := tools.QueryKnowledgeRequest{
		Question: "When does the cache warm?",
		Breadth:  2,
	}

	// Call handler directly
	response, err := srv.handleQueryKnowledge(nil, req)
	if err != nil {
		t.Fatalf("Handler returned error: %v", err)
	}

	// Verify response
	if response.Status != "success" {
		t.Fatalf("Expected status 'success', got '%s' (%s)", response.Status, response.Error)
	}
	if response.Answer != "The cache warms at startup." {
		t.Errorf("Expected the generated answer, got '%s'", response.Answer)
	}
	if len(response.Sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(response.Sources))
	}
	for i, src := range response.Sources {
		if src.Source != "handbook" {
			t.Errorf("Source[%d].Source = '%s', want 'handbook'", i, src.Source)
		}
		if src.Excerpt == "" {
			t.Errorf("Source[%d].Excerpt is empty", i)
		}
	}

	// Verify the generator saw the question
	if len(gen.Prompts) != 1 {
		t.Fatalf("Expected 1 generator call, got %d", len(gen.Prompts))
	}
	if !strings.Contains(gen.Prompts[0], req.Question) {
		t.Error("Expected the prompt to contain the question")
	}
}

// TestQueryKnowledgeBreadth tests breadth defaulting and clamping at the
// tool boundary
func TestQueryKnowledgeBreadth(t *testing.T) {
	srv, _ := newTestServer(t, &MockGenerator{})

	ingestReq := tools.IngestDocumentRequest{
		Path: writeDoc(t, "doc.txt", sampleText(5)),
	}
	ingested, err := srv.handleIngestDocument(nil, ingestReq)
	if err != nil || ingested.Status != "success" {
		t.Fatalf("Failed to ingest test document: err=%v status=%s error=%s", err, ingested.Status, ingested.Error)
	}
	if ingested.Ingested <= tools.DefaultQueryBreadth {
		t.Fatalf("Test document produced %d chunks, need more than %d", ingested.Ingested, tools.DefaultQueryBreadth)
	}

	tests := []struct {
		name    string
		breadth int
		want    int
	}{
		{"omitted breadth uses default", 0, tools.DefaultQueryBreadth},
		{"explicit breadth respected", 2, 2},
		{"negative breadth retrieves all", -1, ingested.Ingested},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := tools.QueryKnowledgeRequest{
				Question: "What does each paragraph cover?",
				Breadth:  tc.breadth,
			}

			response, err := srv.handleQueryKnowledge(nil, req)
			if err != nil {
				t.Fatalf("Handler returned error: %v", err)
			}
			if response.Status != "success" {
				t.Fatalf("Expected status 'success', got '%s' (%s)", response.Status, response.Error)
			}
			if len(response.Sources) != tc.want {
				t.Errorf("Expected %d sources, got %d", tc.want, len(response.Sources))
			}
		})
	}
}

// TestErrorHandling tests error reporting in the tool handlers
func TestErrorHandling(t *testing.T) {
	testCases := []struct {
		name      string
		seedIndex bool
		genError  bool
		buildReq  func(t *testing.T) any
		wantCode  string
	}{
		{
			name: "Empty Path",
			buildReq: func(t *testing.T) any {
				return tools.IngestDocumentRequest{Path: "   "}
			},
			wantCode: StatusCodeValidationError,
		},
		{
			name: "Unsupported Format",
			buildReq: func(t *testing.T) any {
				return tools.IngestDocumentRequest{Path: writeDoc(t, "notes.docx", "binary-ish")}
			},
			wantCode: StatusCodeFormatError,
		},
		{
			name: "Missing File",
			buildReq: func(t *testing.T) any {
				return tools.IngestDocumentRequest{Path: filepath.Join(t.TempDir(), "absent.txt")}
			},
			wantCode: StatusCodeValidationError,
		},
		{
			name: "Empty Question",
			buildReq: func(t *testing.T) any {
				return tools.QueryKnowledgeRequest{Question: "  "}
			},
			wantCode: StatusCodeValidationError,
		},
		{
			name: "Query Before Ingest",
			buildReq: func(t *testing.T) any {
				return tools.QueryKnowledgeRequest{Question: "Anything indexed yet?"}
			},
			wantCode: StatusCodeIndexNotFound,
		},
		{
			name:      "Generation Failure",
			seedIndex: true,
			genError:  true,
			buildReq: func(t *testing.T) any {
				return tools.QueryKnowledgeRequest{Question: "Does generation recover?"}
			},
			wantCode: StatusCodeGenerationError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &MockGenerator{ReturnError: tc.genError}
			srv, _ := newTestServer(t, gen)

			if tc.seedIndex {
				seedReq := tools.IngestDocumentRequest{Path: writeDoc(t, "doc.txt", sampleText(2))}
				if resp, err := srv.handleIngestDocument(nil, seedReq); err != nil || resp.Status != "success" {
					t.Fatalf("Failed to seed index: err=%v status=%s error=%s", err, resp.Status, resp.Error)
				}
			}

			var status, errMsg, code string
			switch req := tc.buildReq(t).(type) {
			case tools.IngestDocumentRequest:
				response, err := srv.handleIngestDocument(nil, req)
				if err != nil {
					t.Fatalf("Handler should not return error: %v", err)
				}
				status, errMsg, code = response.Status, response.Error, response.Code
			case tools.QueryKnowledgeRequest:
				response, err := srv.handleQueryKnowledge(nil, req)
				if err != nil {
					t.Fatalf("Handler should not return error: %v", err)
				}
				status, errMsg, code = response.Status, response.Error, response.Code
			default:
				t.Fatalf("Unhandled request type %T", req)
			}

			// Error belongs in the response, not the Go error
			if status != "error" {
				t.Errorf("Expected status 'error', got '%s'", status)
			}
			if errMsg == "" {
				t.Error("Expected non-empty error message")
			}
			if code != tc.wantCode {
				t.Errorf("Expected code '%s', got '%s'", tc.wantCode, code)
			}
		})
	}
}

// TestIndexStatsEmptyIndex tests the index_stats tool handler before any
// ingestion has happened
func TestIndexStatsEmptyIndex(t *testing.T) {
	srv, store := newTestServer(t, &MockGenerator{})

	response, err := srv.handleIndexStats(nil, tools.IndexStatsRequest{})
	if err != nil {
		t.Fatalf("Handler returned error: %v", err)
	}

	if response.Status != "success" {
		t.Fatalf("Expected status 'success', got '%s' (%s)", response.Status, response.Error)
	}
	if response.Exists {
		t.Error("Expected Exists=false before ingestion")
	}
	if response.Chunks != 0 || response.Dimension != 0 || response.SizeBytes != 0 {
		t.Errorf("Expected zero stats, got chunks=%d dimension=%d size=%d",
			response.Chunks, response.Dimension, response.SizeBytes)
	}
	if response.Path != store.Path() {
		t.Errorf("Expected path '%s', got '%s'", store.Path(), response.Path)
	}
}

// TestIndexStats tests the index_stats tool handler over a populated index
func TestIndexStats(t *testing.T) {
	srv, store := newTestServer(t, &MockGenerator{})

	ingestReq := tools.IngestDocumentRequest{Path: writeDoc(t, "doc.txt", sampleText(3))}
	ingested, err := srv.handleIngestDocument(nil, ingestReq)
	if err != nil || ingested.Status != "success" {
		t.Fatalf("Failed to ingest test document: err=%v status=%s error=%s", err, ingested.Status, ingested.Error)
	}

	response, err := srv.handleIndexStats(nil, tools.IndexStatsRequest{})
	if err != nil {
		t.Fatalf("Handler returned error: %v", err)
	}

	if response.Status != "success" {
		t.Fatalf("Expected status 'success', got '%s' (%s)", response.Status, response.Error)
	}
	if !response.Exists {
		t.Error("Expected Exists=true after ingestion")
	}
	if response.Chunks != ingested.Ingested {
		t.Errorf("Expected %d chunks, got %d", ingested.Ingested, response.Chunks)
	}
	if response.Dimension != testDimensions {
		t.Errorf("Expected dimension %d, got %d", testDimensions, response.Dimension)
	}
	if response.SizeBytes <= 0 {
		t.Errorf("Expected a positive database size, got %d", response.SizeBytes)
	}
	if response.Path != store.Path() {
		t.Errorf("Expected path '%s', got '%s'", store.Path(), response.Path)
	}
}

// TestLifecycleGuards tests initialization and startup preconditions
func TestLifecycleGuards(t *testing.T) {
	srv := NewKnowledgeToolServer(nil, nil, nil)

	if err := srv.Initialize(); err == nil {
		t.Error("Expected Initialize to fail with nil dependencies")
	} else if !errors.Is(err, ErrMissingDependencies) {
		t.Errorf("Expected ErrMissingDependencies, got %v", err)
	}

	if err := srv.Start(); err == nil {
		t.Error("Expected Start to fail before initialization")
	} else if !errors.Is(err, ErrServerNotInitialized) {
		t.Errorf("Expected ErrServerNotInitialized, got %v", err)
	}
}
