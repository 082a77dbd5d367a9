package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultOpenAIModel is the embedding model used when none is configured.
	DefaultOpenAIModel = "text-embedding-3-small"

	// embeddingRequestTimeout bounds a single embeddings API call.
	embeddingRequestTimeout = 30 * time.Second
)

// OpenAIEmbedder creates embeddings through the OpenAI embeddings API or any
// OpenAI-compatible endpoint. Construction is cheap; Initialize builds the
// HTTP client and validates the credential.
type OpenAIEmbedder struct {
	client     *openai.Client
	apiKey     string
	model      string
	baseURL    string
	dimensions int
}

// NewOpenAIEmbedder creates a new OpenAIEmbedder. baseURL may be empty to use
// the OpenAI default endpoint.
func NewOpenAIEmbedder(apiKey, model, baseURL string, dimensions int) *OpenAIEmbedder {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &OpenAIEmbedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		dimensions: dimensions,
	}
}

// Initialize validates the credential and builds the API client.
func (e *OpenAIEmbedder) Initialize() error {
	if e.apiKey == "" {
		return errors.New("embedding API key not provided")
	}

	config := openai.DefaultConfig(e.apiKey)
	if e.baseURL != "" {
		config.BaseURL = e.baseURL
	}
	e.client = openai.NewClientWithConfig(config)

	return nil
}

// Dimensions returns the fixed vector width.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// CreateEmbedding converts one text into a vector representation.
func (e *OpenAIEmbedder) CreateEmbedding(text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}

	embeddings, err := e.CreateEmbeddings([]string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// CreateEmbeddings converts a batch of texts in a single API call, returning
// one vector per input in input order.
func (e *OpenAIEmbedder) CreateEmbeddings(texts []string) ([][]float32, error) {
	if e.client == nil {
		return nil, errors.New("embedder not initialized")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), embeddingRequestTimeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings API call failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	// Place vectors by their reported index; the API preserves order but the
	// index field is authoritative.
	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("embeddings API returned out-of-range index %d", data.Index)
		}

		vec := make([]float32, len(data.Embedding))
		copy(vec, data.Embedding)

		if len(vec) != e.dimensions {
			return nil, fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(vec), e.dimensions)
		}

		l2Normalize(vec)
		embeddings[data.Index] = vec
	}

	for i, vec := range embeddings {
		if vec == nil {
			return nil, fmt.Errorf("embeddings API returned no vector for input %d", i)
		}
	}

	return embeddings, nil
}

// l2Normalize scales a vector to unit length so cosine comparisons reduce to
// dot products. Zero vectors are left untouched.
func l2Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
