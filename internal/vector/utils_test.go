package vector

import (
	"math"
	"reflect"
	"testing"
)

func TestVectorCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
	}{
		{
			name:  "empty vector",
			input: []float32{},
		},
		{
			name:  "single value",
			input: []float32{1.0},
		},
		{
			name:  "mixed values",
			input: []float32{-1.0, 0.0, 1.0, 3.14, -2.718},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := Float32SliceToBytes(test.input)
			if err != nil {
				t.Fatalf("Float32SliceToBytes(%v) error: %v", test.input, err)
			}

			floats, err := BytesToFloat32Slice(data)
			if err != nil {
				t.Fatalf("BytesToFloat32Slice error: %v", err)
			}

			if !reflect.DeepEqual(test.input, floats) {
				t.Errorf("Expected %v, got %v", test.input, floats)
			}
		})
	}
}

func TestBytesToFloat32SliceCorrupt(t *testing.T) {
	good, err := Float32SliceToBytes([]float32{1.0, 2.0, 3.0})
	if err != nil {
		t.Fatalf("Float32SliceToBytes error: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "empty data",
			data: nil,
		},
		{
			name: "truncated values",
			data: good[:len(good)-2],
		},
		{
			name: "negative length",
			data: []byte{0xff, 0xff, 0xff, 0xff},
		},
		{
			name: "trailing garbage",
			data: append(append([]byte{}, good...), 0x01),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := BytesToFloat32Slice(test.data); err == nil {
				t.Errorf("BytesToFloat32Slice(%v) expected error, got nil", test.data)
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
		wantErr  bool
	}{
		{
			name:     "identical vectors",
			a:        []float32{1.0, 2.0, 3.0},
			b:        []float32{1.0, 2.0, 3.0},
			expected: 1.0,
			wantErr:  false,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 1.0, 0.0},
			expected: 0.0,
			wantErr:  false,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1.0, 2.0, 3.0},
			b:        []float32{-1.0, -2.0, -3.0},
			expected: -1.0,
			wantErr:  false,
		},
		{
			name:     "different length vectors",
			a:        []float32{1.0, 2.0, 3.0},
			b:        []float32{1.0, 2.0},
			expected: 0.0,
			wantErr:  true,
		},
		{
			name:     "zero vector",
			a:        []float32{0.0, 0.0, 0.0},
			b:        []float32{1.0, 2.0, 3.0},
			expected: 0.0,
			wantErr:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			similarity, err := CosineSimilarity(test.a, test.b)

			if (err != nil) != test.wantErr {
				t.Errorf("CosineSimilarity() error = %v, wantErr %v", err, test.wantErr)
				return
			}
			if test.wantErr {
				return
			}

			if math.Abs(similarity-test.expected) > 1e-6 {
				t.Errorf("CosineSimilarity() = %v, want %v", similarity, test.expected)
			}
		})
	}
}

func TestL2Normalize(t *testing.T) {
	vec := []float32{3.0, 4.0}
	l2Normalize(vec)

	var sumSquares float64
	for _, val := range vec {
		sumSquares += float64(val) * float64(val)
	}
	if math.Abs(math.Sqrt(sumSquares)-1.0) > 1e-6 {
		t.Errorf("Expected unit vector after normalization, got magnitude %f", math.Sqrt(sumSquares))
	}

	// Zero vectors must pass through unchanged rather than divide by zero.
	zero := []float32{0.0, 0.0, 0.0}
	l2Normalize(zero)
	for i, val := range zero {
		if val != 0 {
			t.Errorf("Expected zero vector to stay zero, got %f at %d", val, i)
		}
	}
}

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{
			name:     "default provider is mock",
			settings: Settings{},
			wantErr:  false,
		},
		{
			name:     "explicit mock provider",
			settings: Settings{Provider: "mock", Dimensions: 64},
			wantErr:  false,
		},
		{
			name:     "openai provider",
			settings: Settings{Provider: "openai", APIKey: "test-key"},
			wantErr:  false,
		},
		{
			name:     "unknown provider",
			settings: Settings{Provider: "cohere"},
			wantErr:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			embedder, err := NewEmbedder(test.settings)
			if (err != nil) != test.wantErr {
				t.Errorf("NewEmbedder() error = %v, wantErr %v", err, test.wantErr)
				return
			}
			if test.wantErr {
				return
			}

			if embedder.Dimensions() <= 0 {
				t.Errorf("Expected positive dimension, got %d", embedder.Dimensions())
			}
			if test.settings.Dimensions > 0 && embedder.Dimensions() != test.settings.Dimensions {
				t.Errorf("Expected dimension %d, got %d", test.settings.Dimensions, embedder.Dimensions())
			}
		})
	}
}

func TestMockEmbedder(t *testing.T) {
	embedder := NewMockEmbedder(128)

	if err := embedder.Initialize(); err != nil {
		t.Fatalf("MockEmbedder.Initialize() error = %v", err)
	}
	if embedder.Dimensions() != 128 {
		t.Fatalf("Expected dimension 128, got %d", embedder.Dimensions())
	}

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "empty string",
			input: "",
		},
		{
			name:  "short text",
			input: "Hello, world!",
		},
		{
			name:  "longer text",
			input: "This is a longer piece of text to test the embedding functionality.",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			embedding, err := embedder.CreateEmbedding(test.input)
			if err != nil {
				t.Fatalf("MockEmbedder.CreateEmbedding(%q) error = %v", test.input, err)
			}

			if len(embedding) != 128 {
				t.Errorf("Expected embedding dimension 128, got %d", len(embedding))
			}

			// Vectors come back unit length.
			var sumSquares float32
			for _, val := range embedding {
				sumSquares += val * val
			}
			magnitude := float64(math.Sqrt(float64(sumSquares)))
			if math.Abs(magnitude-1.0) > 1e-6 {
				t.Errorf("Expected unit vector (magnitude 1.0), got %f", magnitude)
			}

			// Same input always produces the same vector.
			embedding2, err := embedder.CreateEmbedding(test.input)
			if err != nil {
				t.Fatalf("MockEmbedder.CreateEmbedding(%q) 2nd call error = %v", test.input, err)
			}
			if !reflect.DeepEqual(embedding, embedding2) {
				t.Errorf("Expected identical embeddings for the same input, but they differ")
			}
		})
	}
}

func TestMockEmbedderBatch(t *testing.T) {
	embedder := NewMockEmbedder(64)
	if err := embedder.Initialize(); err != nil {
		t.Fatalf("MockEmbedder.Initialize() error = %v", err)
	}

	texts := []string{"first chunk", "second chunk", "third chunk"}
	embeddings, err := embedder.CreateEmbeddings(texts)
	if err != nil {
		t.Fatalf("MockEmbedder.CreateEmbeddings() error = %v", err)
	}

	if len(embeddings) != len(texts) {
		t.Fatalf("Expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	// Batch output matches what single calls produce, in input order.
	for i, text := range texts {
		single, err := embedder.CreateEmbedding(text)
		if err != nil {
			t.Fatalf("MockEmbedder.CreateEmbedding(%q) error = %v", text, err)
		}
		if !reflect.DeepEqual(single, embeddings[i]) {
			t.Errorf("Batch embedding %d differs from single-call embedding for %q", i, text)
		}
	}
}
