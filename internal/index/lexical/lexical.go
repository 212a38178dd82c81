package lexical

import (
	"context"

	"sift/internal/model"
)

// Hit is one lexical search result.
type Hit struct {
	ChunkID   string  `json:"chunk_id"`
	Path      string  `json:"path"`
	StartLine int     `json:"sl"`
	EndLine   int     `json:"el"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet,omitempty"`
}

// Query is a parsed lexical request. Terms are already tokenized and
// expanded by query understanding.
type Query struct {
	Terms      []string
	Language   string
	PathPrefix string
	Limit      int
}

// Backend is a lexical BM25 index over chunks. Add and Remove stage
// mutations; Commit publishes them as one generation. Searches observe
// only the last committed generation, never pending writes.
type Backend interface {
	Add(chunks []model.Chunk) error
	Remove(chunkIDs []string) error
	Commit() error
	Search(ctx context.Context, q Query) ([]Hit, error)
	Generation() uint64
	Close() error
}
