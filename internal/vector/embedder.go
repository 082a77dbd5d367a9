// Package vector provides interfaces and utilities for vector operations
// and text embedding within the kbrag service.
package vector

import "fmt"

const (
	// DefaultEmbeddingDimensions defines the standard size of embedding vectors.
	// 384 matches the compact sentence-embedding models the knowledge base is
	// tuned for.
	DefaultEmbeddingDimensions = 384
)

// Embedder defines the interface for creating vector embeddings from text.
// Ingestion-time and query-time embeddings must come from the same provider
// instance so their normalization conventions match; see Shared.
type Embedder interface {
	// CreateEmbedding converts text into a vector representation.
	CreateEmbedding(text string) ([]float32, error)

	// CreateEmbeddings converts a batch of texts into vectors, one per input,
	// preserving input order.
	CreateEmbeddings(texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of vectors this embedder produces.
	Dimensions() int

	// Initialize sets up the embedder with any required configuration.
	Initialize() error
}

// Settings selects and configures an embedding provider.
type Settings struct {
	// Provider names the implementation: "openai" or "mock".
	Provider string

	// APIKey authenticates against the provider. Unused by the mock.
	APIKey string

	// Model is the provider-side model identifier.
	Model string

	// BaseURL overrides the provider endpoint, for OpenAI-compatible local
	// servers. Empty means the provider default.
	BaseURL string

	// Dimensions is the requested vector width. Zero means
	// DefaultEmbeddingDimensions.
	Dimensions int
}

// NewEmbedder constructs an embedder for the given settings without
// initializing it. Most callers want Shared instead.
func NewEmbedder(s Settings) (Embedder, error) {
	dimensions := s.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}

	switch s.Provider {
	case "openai":
		return NewOpenAIEmbedder(s.APIKey, s.Model, s.BaseURL, dimensions), nil
	case "mock", "":
		return NewMockEmbedder(dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", s.Provider)
	}
}
