//go:build vectors

// Package bleveann stores chunk vectors in a bleve index with KNN
// enabled. Building with the vectors tag pulls in the faiss-backed
// vector segment support.
package bleveann

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"sift/internal/index/vector"
)

type Store struct {
	idx  bleve.Index
	dims int
}

var _ vector.Backend = (*Store)(nil)

func Open(path string, dims int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("dims must be positive")
	}

	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open vector index: %w", err)
		}
		return &Store{idx: idx, dims: dims}, nil
	}

	idx, err := bleve.New(path, buildMapping(dims))
	if err != nil {
		return nil, fmt.Errorf("create vector index: %w", err)
	}
	return &Store{idx: idx, dims: dims}, nil
}

func (s *Store) Upsert(docs []vector.Doc) error {
	batch := s.idx.NewBatch()
	for _, d := range docs {
		if len(d.Vector) != s.dims {
			return fmt.Errorf("vector for %s has %d dims, want %d", d.ChunkID, len(d.Vector), s.dims)
		}
		err := batch.Index(d.ChunkID, map[string]any{
			"path": d.Path,
			"vec":  d.Vector,
		})
		if err != nil {
			return err
		}
	}
	return s.idx.Batch(batch)
}

func (s *Store) Delete(chunkIDs []string) error {
	batch := s.idx.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	return s.idx.Batch(batch)
}

func (s *Store) Query(ctx context.Context, vec []float32, k int) ([]vector.Hit, error) {
	if len(vec) != s.dims {
		return nil, fmt.Errorf("query vector has %d dims, want %d", len(vec), s.dims)
	}
	if k <= 0 {
		k = 10
	}
	req := bleve.NewSearchRequestOptions(query.NewMatchNoneQuery(), k, 0, false)
	req.AddKNN("vec", vec, int64(k), 1.0)
	req.Fields = []string{"path"}

	res, err := s.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	hits := make([]vector.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := vector.Hit{ChunkID: h.ID, Score: h.Score}
		if p, ok := h.Fields["path"].(string); ok {
			hit.Path = p
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *Store) Close() error {
	if s == nil || s.idx == nil {
		return nil
	}
	return s.idx.Close()
}

func buildMapping(dims int) mapping.IndexMapping {
	vecField := mapping.NewVectorFieldMapping()
	vecField.Dims = dims
	vecField.Similarity = "cosine"

	pathField := bleve.NewKeywordFieldMapping()
	pathField.Store = true
	pathField.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("vec", vecField)
	doc.AddFieldMappingsAt("path", pathField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}
