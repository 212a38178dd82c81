package bleve

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	bquery "github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/sync/errgroup"

	"sift/internal/index/lexical"
	"sift/internal/model"
)

// Store is a sharded bleve BM25 index. Chunks hash to shards by path so a
// file's chunks stay together; shards index and search in parallel.
// Mutations stage into per-shard batches and only Commit publishes them,
// so readers always see the last committed generation.
type Store struct {
	path       string
	shards     []*shard
	generation atomic.Uint64
}

type shard struct {
	mu      sync.Mutex // commit lock; readers never take it
	idx     bleve.Index
	pending *bleve.Batch
}

type storeMeta struct {
	Shards int `json:"shards"`
}

const metaName = "sift-shards.json"

func Open(path string, shardCount int) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("index path is required")
	}
	if shardCount <= 0 {
		shardCount = 4
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	metaPath := filepath.Join(path, metaName)
	if raw, err := os.ReadFile(metaPath); err == nil {
		var meta storeMeta
		if err := json.Unmarshal(raw, &meta); err == nil && meta.Shards > 0 {
			shardCount = meta.Shards
		}
	} else {
		buf, _ := json.Marshal(storeMeta{Shards: shardCount})
		if err := os.WriteFile(metaPath, buf, 0o644); err != nil {
			return nil, err
		}
	}

	s := &Store{path: path}
	for i := 0; i < shardCount; i++ {
		shardPath := filepath.Join(path, fmt.Sprintf("shard-%d", i))
		idx, err := openShard(shardPath)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.shards = append(s.shards, &shard{idx: idx})
	}
	return s, nil
}

func openShard(path string) (bleve.Index, error) {
	if _, err := os.Stat(filepath.Join(path, "index_meta.json")); err == nil {
		return bleve.Open(path)
	}
	return bleve.New(path, buildMapping())
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	for _, sh := range s.shards {
		if sh != nil && sh.idx != nil {
			_ = sh.idx.Close()
		}
	}
	return nil
}

func (s *Store) Add(chunks []model.Chunk) error {
	for _, c := range chunks {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("chunk id is required")
		}
		sh := s.shardFor(c.Path)

		sh.mu.Lock()
		if sh.pending == nil {
			sh.pending = sh.idx.NewBatch()
		}
		err := sh.pending.Index(c.ID, chunkDoc(c))
		sh.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// Remove stages deletes in every shard: removal is keyed by chunk ID alone
// and deleting an absent document is a no-op.
func (s *Store) Remove(chunkIDs []string) error {
	for _, id := range chunkIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		for _, sh := range s.shards {
			sh.mu.Lock()
			if sh.pending == nil {
				sh.pending = sh.idx.NewBatch()
			}
			sh.pending.Delete(id)
			sh.mu.Unlock()
		}
	}
	return nil
}

// Commit applies all pending batches as one generation.
func (s *Store) Commit() error {
	var g errgroup.Group
	for _, sh := range s.shards {
		sh := sh
		g.Go(func() error {
			sh.mu.Lock()
			defer sh.mu.Unlock()
			if sh.pending == nil {
				return nil
			}
			if err := sh.idx.Batch(sh.pending); err != nil {
				return err
			}
			sh.pending = nil
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.generation.Add(1)
	return nil
}

func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Search fans out to all shards in parallel and merges top hits by score.
func (s *Store) Search(ctx context.Context, q lexical.Query) ([]lexical.Hit, error) {
	if len(q.Terms) == 0 {
		return nil, fmt.Errorf("at least one term is required")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	results := make([][]lexical.Hit, len(s.shards))
	g, ctx := errgroup.WithContext(ctx)
	for i, sh := range s.shards {
		i, sh := i, sh
		g.Go(func() error {
			hits, err := searchShard(ctx, sh.idx, q, limit)
			if err != nil {
				return err
			}
			results[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []lexical.Hit
	for _, hits := range results {
		merged = append(merged, hits...)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score == merged[j].Score {
			return merged[i].ChunkID < merged[j].ChunkID
		}
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func searchShard(ctx context.Context, idx bleve.Index, q lexical.Query, limit int) ([]lexical.Hit, error) {
	var conj []bquery.Query
	match := bleve.NewMatchQuery(strings.Join(q.Terms, " "))
	match.SetField("text")
	conj = append(conj, match)

	if lang := strings.TrimSpace(q.Language); lang != "" {
		tq := bleve.NewTermQuery(lang)
		tq.SetField("lang")
		conj = append(conj, tq)
	}
	if prefix := strings.TrimSpace(q.PathPrefix); prefix != "" {
		pq := bleve.NewPrefixQuery(prefix)
		pq.SetField("path")
		conj = append(conj, pq)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conj...), limit, 0, false)
	req.Fields = []string{"path", "sl", "el"}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.Fields = []string{"text"}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]lexical.Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h := lexical.Hit{ChunkID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["path"].(string); ok {
			h.Path = v
		}
		if v, ok := toInt(hit.Fields["sl"]); ok {
			h.StartLine = v
		}
		if v, ok := toInt(hit.Fields["el"]); ok {
			h.EndLine = v
		}
		if hit.Fragments != nil {
			if frags := hit.Fragments["text"]; len(frags) > 0 {
				h.Snippet = normalizeSnippet(frags[0])
			}
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) shardFor(path string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(filepath.ToSlash(path)))
	return s.shards[int(h.Sum32())%len(s.shards)]
}

func chunkDoc(c model.Chunk) map[string]any {
	return map[string]any{
		"path": filepath.ToSlash(c.Path),
		"lang": c.Language,
		"sl":   c.StartLine,
		"el":   c.EndLine,
		"text": c.Text,
	}
}

func buildMapping() mapping.IndexMapping {
	idxMapping := bleve.NewIndexMapping()
	idxMapping.DefaultAnalyzer = "standard"

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true
	keyword.DocValues = true

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"
	text.Store = true
	text.Index = true

	num := bleve.NewNumericFieldMapping()
	num.Store = true
	num.Index = true
	num.DocValues = true

	doc.AddFieldMappingsAt("path", keyword)
	doc.AddFieldMappingsAt("lang", keyword)
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("sl", num)
	doc.AddFieldMappingsAt("el", num)

	idxMapping.DefaultMapping = doc
	return idxMapping
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case float32:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case uint64:
		return int(t), true
	default:
		return 0, false
	}
}

func normalizeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "<mark>", "<<")
	s = strings.ReplaceAll(s, "</mark>", ">>")
	return s
}
