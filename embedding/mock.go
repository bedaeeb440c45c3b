package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// MockEmbedder generates deterministic embeddings without any external
// service. Each word is hashed into a bucket of the vector, so texts sharing
// vocabulary get similar vectors; useful for tests and offline runs.
type MockEmbedder struct {
	Dimension int
}

var _ Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a MockEmbedder with the given vector dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{Dimension: dimension}
}

// EmbedQuery generates a deterministic embedding for text.
func (e *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.generate(text), nil
}

// EmbedDocuments generates deterministic embeddings for texts.
func (e *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = e.generate(text)
	}
	return vecs, nil
}

func (e *MockEmbedder) generate(text string) []float32 {
	vec := make([]float32, e.Dimension)

	for _, word := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%e.Dimension]++
	}

	// L2-normalize so cosine similarity behaves like word overlap.
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}
