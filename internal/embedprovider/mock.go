// Package embedprovider provides reference implementations of
// retrieval.EmbeddingProvider. MockProvider is grounded on the teacher's
// internal/embed/mock.go (deterministic SHA-256-derived embeddings);
// HTTPProvider is grounded on internal/embed/local.go's net/http request
// shape, trimmed of the binary-download/process-management machinery
// (deployment tooling outside the core's scope).
package embedprovider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// MockProvider generates deterministic embeddings from a text hash. It
// has no external dependency and is useful for tests and for running the
// pipeline without a real embedding model.
type MockProvider struct {
	Dimension int
}

// NewMockProvider constructs a MockProvider with the given dimension.
func NewMockProvider(dimension int) *MockProvider {
	if dimension <= 0 {
		dimension = 384
	}
	return &MockProvider{Dimension: dimension}
}

func (p *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return hashEmbedding(text, p.Dimension), nil
}

func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbedding(t, p.Dimension)
	}
	return out, nil
}

func (p *MockProvider) DetectDimension(ctx context.Context) (int, error) { return p.Dimension, nil }
func (p *MockProvider) ProviderName() string                            { return "mock" }

func hashEmbedding(text string, dimension int) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, dimension)
	for i := range vec {
		offset := (i * 4) % len(hash)
		val := binary.BigEndian.Uint32(hash[offset : offset+4])
		vec[i] = (float32(val)/float32(1<<32))*2.0 - 1.0
	}
	return vec
}
