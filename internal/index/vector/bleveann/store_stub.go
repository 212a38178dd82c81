//go:build !vectors

package bleveann

import (
	"context"

	"sift/internal/index/vector"
)

// Store is compiled out without the vectors build tag; every operation
// reports the backend unavailable so the health tracker degrades it
// immediately and the fallback store serves instead.
type Store struct{}

var _ vector.Backend = (*Store)(nil)

func Open(path string, dims int) (*Store, error) {
	return &Store{}, nil
}

func (s *Store) Upsert(docs []vector.Doc) error { return vector.ErrUnavailable }

func (s *Store) Delete(chunkIDs []string) error { return vector.ErrUnavailable }

func (s *Store) Query(ctx context.Context, vec []float32, k int) ([]vector.Hit, error) {
	return nil, vector.ErrUnavailable
}

func (s *Store) Close() error { return nil }
