package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// hashEmbedder is a deterministic test embedder: token hashes bucketed
// into a fixed-size vector. Similar texts share buckets, so cosine
// similarity behaves sensibly without a model.
type hashEmbedder struct {
	dims int
}

func (e *hashEmbedder) Dimensions() int { return e.dims }

func (e *hashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, e.dims)
		word := ""
		for _, r := range t + " " {
			if r == ' ' || r == '\n' || r == '\t' {
				if word != "" {
					h := fnv.New32a()
					_, _ = h.Write([]byte(word))
					vec[int(h.Sum32())%e.dims]++
					word = ""
				}
				continue
			}
			word += string(r)
		}
		out[i] = vec
	}
	return out, nil
}

// flakyBackend records upserts in memory and can be switched to fail.
type flakyBackend struct {
	mu   sync.Mutex
	fail bool
	docs map[string]Doc
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{docs: make(map[string]Doc)}
}

func (b *flakyBackend) setFail(fail bool) {
	b.mu.Lock()
	b.fail = fail
	b.mu.Unlock()
}

func (b *flakyBackend) Upsert(docs []Doc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return fmt.Errorf("backend offline")
	}
	for _, d := range docs {
		b.docs[d.ChunkID] = d
	}
	return nil
}

func (b *flakyBackend) Delete(ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return fmt.Errorf("backend offline")
	}
	for _, id := range ids {
		delete(b.docs, id)
	}
	return nil
}

func (b *flakyBackend) Query(_ context.Context, vec []float32, k int) ([]Hit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return nil, fmt.Errorf("backend offline")
	}
	var hits []Hit
	for _, d := range b.docs {
		if score, ok := cosine(vec, d.Vector); ok {
			hits = append(hits, Hit{ChunkID: d.ChunkID, Path: d.Path, Score: score})
		}
	}
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (b *flakyBackend) Close() error { return nil }

func (b *flakyBackend) has(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.docs[id]
	return ok
}
