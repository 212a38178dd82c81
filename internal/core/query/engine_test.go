package query

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"sift/internal/core/chunkstore"
	"sift/internal/core/fuse"
	"sift/internal/core/queryparse"
	"sift/internal/deltalog"
	"sift/internal/index/lexical"
	"sift/internal/index/vector"
	"sift/internal/model"
)

// memLexical matches terms by substring over stored chunk text, enough
// to drive the engine without a real index.
type memLexical struct {
	mu       sync.Mutex
	chunks   []model.Chunk
	gen      uint64
	searches int
}

func (m *memLexical) Add(chunks []model.Chunk) error {
	m.mu.Lock()
	m.chunks = append(m.chunks, chunks...)
	m.mu.Unlock()
	return nil
}

func (m *memLexical) Remove(ids []string) error { return nil }

func (m *memLexical) Commit() error {
	m.mu.Lock()
	m.gen++
	m.mu.Unlock()
	return nil
}

func (m *memLexical) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *memLexical) Close() error { return nil }

func (m *memLexical) Search(_ context.Context, q lexical.Query) ([]lexical.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
	var hits []lexical.Hit
	for _, c := range m.chunks {
		if q.Language != "" && c.Language != q.Language {
			continue
		}
		score := 0.0
		for _, t := range q.Terms {
			if strings.Contains(strings.ToLower(c.Text), strings.ToLower(t)) {
				score += 10
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, lexical.Hit{
			ChunkID: c.ID, Path: c.Path, StartLine: c.StartLine, EndLine: c.EndLine,
			Score: score, Snippet: Snippet(c.Text, q.Terms),
		})
	}
	return hits, nil
}

func (m *memLexical) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches
}

// memVector is a brute-force cosine backend for tests.
type memVector struct {
	mu   sync.Mutex
	docs map[string]vector.Doc
}

func newMemVector() *memVector { return &memVector{docs: map[string]vector.Doc{}} }

func (m *memVector) Upsert(docs []vector.Doc) error {
	m.mu.Lock()
	for _, d := range docs {
		m.docs[d.ChunkID] = d
	}
	m.mu.Unlock()
	return nil
}

func (m *memVector) Delete(ids []string) error {
	m.mu.Lock()
	for _, id := range ids {
		delete(m.docs, id)
	}
	m.mu.Unlock()
	return nil
}

func (m *memVector) Query(_ context.Context, vec []float32, k int) ([]vector.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var hits []vector.Hit
	for _, d := range m.docs {
		var dot, na, nb float64
		for i := range vec {
			if i >= len(d.Vector) {
				break
			}
			dot += float64(vec[i]) * float64(d.Vector[i])
			na += float64(vec[i]) * float64(vec[i])
			nb += float64(d.Vector[i]) * float64(d.Vector[i])
		}
		if na == 0 || nb == 0 {
			continue
		}
		hits = append(hits, vector.Hit{ChunkID: d.ChunkID, Path: d.Path, Score: dot})
	}
	return hits, nil
}

func (m *memVector) Close() error { return nil }

// wordEmbedder buckets token hashes, deterministic for tests.
type wordEmbedder struct{ dims int }

func (e *wordEmbedder) Dimensions() int { return e.dims }

func (e *wordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, e.dims)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			sum := 0
			for _, r := range w {
				sum = sum*31 + int(r)
			}
			if sum < 0 {
				sum = -sum
			}
			vec[sum%e.dims]++
		}
		out[i] = vec
	}
	return out, nil
}

type testEnv struct {
	engine  *Engine
	lexical *memLexical
	chunks  *chunkstore.Store
}

func newTestEnv(t *testing.T, opts Options, docs []model.Chunk, withVector bool) *testEnv {
	t.Helper()
	cs, err := chunkstore.Open(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("open chunk store: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	if err := cs.Put(docs); err != nil {
		t.Fatalf("put chunks: %v", err)
	}

	lex := &memLexical{}
	_ = lex.Add(docs)
	_ = lex.Commit()

	var vix *vector.Index
	if withVector {
		lg, err := deltalog.Open(t.TempDir(), deltalog.Options{})
		if err != nil {
			t.Fatalf("open log: %v", err)
		}
		t.Cleanup(func() { _ = lg.Close() })

		vix, err = vector.New(newMemVector(), &wordEmbedder{dims: 32}, vector.Options{
			Logger: slog.New(slog.DiscardHandler),
		})
		if err != nil {
			t.Fatalf("new vector index: %v", err)
		}
		var entries []deltalog.Entry
		for _, c := range docs {
			seq, err := lg.Append(deltalog.OpAdd, c)
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			entries = append(entries, deltalog.Entry{Seq: seq, Op: deltalog.OpAdd, Chunk: c})
		}
		if err := vix.Apply(context.Background(), lg, entries); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	eng, err := NewEngine(lex, vix, cs, opts)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &testEnv{engine: eng, lexical: lex, chunks: cs}
}

func authCorpus() []model.Chunk {
	return []model.Chunk{
		{ID: "c-auth", Path: "auth.go", Language: "go", StartLine: 10, EndLine: 18,
			Text: "func authenticate(user User) error {\n\treturn checkPassword(user)\n}"},
		{ID: "c-login", Path: "login.go", Language: "go", StartLine: 4, EndLine: 12,
			Text: "verify user login credentials and session state"},
		{ID: "c-billing", Path: "billing.go", Language: "go", StartLine: 0, EndLine: 6,
			Text: "invoice total rounding"},
	}
}

func TestSearchHybrid(t *testing.T) {
	env := newTestEnv(t, Options{}, authCorpus(), true)

	res, err := env.engine.Search(context.Background(), "authenticate user", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	byID := map[string]model.FusedResult{}
	for _, it := range res.Items {
		byID[it.ChunkID] = it
	}
	if _, ok := byID["c-auth"]; !ok {
		t.Fatalf("literal match missing: %v", res.Items)
	}
	if _, ok := byID["c-login"]; !ok {
		t.Fatalf("semantic match missing: %v", res.Items)
	}
	if res.Items[0].ChunkID != "c-auth" {
		t.Fatalf("literal match should rank first, got %s", res.Items[0].ChunkID)
	}
	if byID["c-auth"].LexicalScore == 0 {
		t.Fatalf("missing per-source breakdown: %+v", byID["c-auth"])
	}
	if !strings.Contains(byID["c-auth"].Snippet, "<<") {
		t.Fatalf("snippet not highlighted: %q", byID["c-auth"].Snippet)
	}
	if byID["c-login"].StartLine != 4 || byID["c-login"].EndLine != 12 {
		t.Fatalf("vector hit missing line range: %+v", byID["c-login"])
	}
}

func TestSearchLexicalOnly(t *testing.T) {
	env := newTestEnv(t, Options{}, authCorpus(), false)
	res, err := env.engine.Search(context.Background(), "invoice", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ChunkID != "c-billing" {
		t.Fatalf("items=%v", res.Items)
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	env := newTestEnv(t, Options{}, authCorpus(), false)
	if _, err := env.engine.Search(context.Background(), "  ", nil); !errors.Is(err, queryparse.ErrInvalidQuery) {
		t.Fatalf("err=%v", err)
	}
}

func TestSearchNoCandidates(t *testing.T) {
	env := newTestEnv(t, Options{}, authCorpus(), false)
	if _, err := env.engine.Search(context.Background(), "zzzznothing", nil); !errors.Is(err, fuse.ErrNoCandidates) {
		t.Fatalf("err=%v", err)
	}
}

func TestSearchCacheHit(t *testing.T) {
	env := newTestEnv(t, Options{CacheSize: 8}, authCorpus(), false)

	if _, err := env.engine.Search(context.Background(), "invoice", nil); err != nil {
		t.Fatalf("search: %v", err)
	}
	n := env.lexical.searchCount()
	if _, err := env.engine.Search(context.Background(), "invoice", nil); err != nil {
		t.Fatalf("search: %v", err)
	}
	if env.lexical.searchCount() != n {
		t.Fatalf("cache miss on identical query")
	}

	// A commit bumps the generation and invalidates the cache.
	_ = env.lexical.Commit()
	if _, err := env.engine.Search(context.Background(), "invoice", nil); err != nil {
		t.Fatalf("search: %v", err)
	}
	if env.lexical.searchCount() != n+1 {
		t.Fatalf("stale cache served after commit")
	}
}

func TestSearchLowConfidence(t *testing.T) {
	docs := []model.Chunk{
		{ID: "a", Path: "a.go", Text: "shared term here"},
		{ID: "b", Path: "b.go", Text: "shared term there"},
	}
	env := newTestEnv(t, Options{Method: fuse.MethodMinMax, MinTopMargin: 0.5}, docs, false)

	res, err := env.engine.Search(context.Background(), "shared", nil)
	if err != nil {
		t.Fatalf("low-confidence search must not error: %v", err)
	}
	if !res.LowConfidence {
		t.Fatalf("expected low-confidence flag: %+v", res)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items=%v", res.Items)
	}
}

func TestSearchPerPathTopN(t *testing.T) {
	docs := []model.Chunk{
		{ID: "a1", Path: "a.go", Text: "needle one"},
		{ID: "a2", Path: "a.go", Text: "needle two"},
		{ID: "a3", Path: "a.go", Text: "needle three"},
		{ID: "b1", Path: "b.go", Text: "needle four"},
	}
	env := newTestEnv(t, Options{PerPathTopN: 1}, docs, false)

	res, err := env.engine.Search(context.Background(), "needle", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	perPath := map[string]int{}
	for _, it := range res.Items {
		perPath[it.Path]++
	}
	if perPath["a.go"] != 1 || perPath["b.go"] != 1 {
		t.Fatalf("perPath=%v", perPath)
	}
}
