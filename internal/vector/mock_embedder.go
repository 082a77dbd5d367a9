package vector

import (
	"crypto/md5"
	"encoding/binary"
	"math"
)

// MockEmbedder is a simple implementation of the Embedder interface.
// It creates deterministic but simplistic embeddings for testing purposes
// and for keyless local operation.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder creates a new MockEmbedder with the specified dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &MockEmbedder{
		dimensions: dimensions,
	}
}

// Initialize sets up the embedder with any required configuration.
func (e *MockEmbedder) Initialize() error {
	return nil // No initialization needed for the mock embedder
}

// Dimensions returns the fixed vector width.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// CreateEmbedding generates a mock embedding for the given text.
// It uses a deterministic algorithm based on MD5 hashing to ensure
// that the same text always produces the same embedding.
func (e *MockEmbedder) CreateEmbedding(text string) ([]float32, error) {
	// Create an embedding of the specified dimensions
	embedding := make([]float32, e.dimensions)

	// Use MD5 hash of the text as a seed for the embedding
	hash := md5.Sum([]byte(text))

	// Fill the embedding array with values derived from the hash
	for i := 0; i < e.dimensions; i++ {
		// Use 4 bytes from the hash as a seed for each dimension
		// Wrap around the hash if needed
		hashIdx := (i * 4) % len(hash)
		seed := binary.LittleEndian.Uint32(append(hash[hashIdx:], hash[:4]...))

		// Generate a value between -1 and 1 based on the seed
		value := float32(seed%1000)/500.0 - 1.0
		embedding[i] = value
	}

	// Normalize the embedding
	e.normalizeEmbedding(embedding)

	return embedding, nil
}

// CreateEmbeddings generates one mock embedding per input text, in order.
func (e *MockEmbedder) CreateEmbeddings(texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.CreateEmbedding(text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// normalizeEmbedding normalizes the embedding to have unit length.
func (e *MockEmbedder) normalizeEmbedding(embedding []float32) {
	// Calculate the squared magnitude
	var sumSquares float32
	for _, val := range embedding {
		sumSquares += val * val
	}

	// Calculate the magnitude
	magnitude := float32(math.Sqrt(float64(sumSquares)))

	// Normalize each component
	for i := range embedding {
		embedding[i] /= magnitude
	}
}
