package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Float32SliceToBytes serializes a vector as a little-endian length prefix
// followed by the raw float32 values, suitable for storage in a BLOB column.
func Float32SliceToBytes(floats []float32) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.LittleEndian, int32(len(floats))); err != nil {
		return nil, fmt.Errorf("failed to write vector length: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, floats); err != nil {
		return nil, fmt.Errorf("failed to write vector values: %w", err)
	}

	return buf.Bytes(), nil
}

// BytesToFloat32Slice deserializes a vector written by Float32SliceToBytes.
func BytesToFloat32Slice(data []byte) ([]float32, error) {
	buf := bytes.NewReader(data)

	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read vector length: %w", err)
	}
	if length < 0 {
		return nil, fmt.Errorf("invalid vector length %d", length)
	}
	if int(length)*4 != buf.Len() {
		return nil, fmt.Errorf("vector data truncated: declared %d values, have %d bytes", length, buf.Len())
	}

	floats := make([]float32, length)
	if err := binary.Read(buf, binary.LittleEndian, floats); err != nil {
		return nil, fmt.Errorf("failed to read vector values: %w", err)
	}

	return floats, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors. The
// result is in [-1, 1], where 1 means the vectors point the same way.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same dimension: %d != %d", len(a), len(b))
	}

	var dotProduct float32
	var normA float32
	var normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("one or both vectors have zero magnitude")
	}

	return float64(dotProduct) / (math.Sqrt(float64(normA)) * math.Sqrt(float64(normB))), nil
}
