// Package vector holds the approximate-nearest-neighbor side of the
// hybrid index: an embedder turns chunk text into vectors, a backend
// stores and queries them, and Index wraps both with failure tracking
// and a degraded-mode fallback.
package vector

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by backends that were compiled out or
// cannot serve queries.
var ErrUnavailable = errors.New("vector backend unavailable")

type Doc struct {
	ChunkID string
	Path    string
	Vector  []float32
}

type Hit struct {
	ChunkID string
	Path    string
	Score   float64
}

// Backend is a vector store keyed by chunk id. Upsert replaces any
// existing vector for the same id.
type Backend interface {
	Upsert(docs []Doc) error
	Delete(chunkIDs []string) error
	Query(ctx context.Context, vec []float32, k int) ([]Hit, error)
	Close() error
}

// Embedder maps chunk text to fixed-dimension vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
