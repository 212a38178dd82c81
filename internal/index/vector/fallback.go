package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// fallbackStore is a bounded in-memory brute-force cosine index used to
// keep vector search serving while the real backend is degraded. It only
// holds the most recently written vectors, so recall is partial.
type fallbackStore struct {
	mu    sync.RWMutex
	max   int
	order []string
	docs  map[string]Doc
}

func newFallbackStore(max int) *fallbackStore {
	if max <= 0 {
		max = 2048
	}
	return &fallbackStore{max: max, docs: make(map[string]Doc)}
}

func (f *fallbackStore) put(docs []Doc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range docs {
		if _, seen := f.docs[d.ChunkID]; !seen {
			f.order = append(f.order, d.ChunkID)
		}
		f.docs[d.ChunkID] = d
	}
	for len(f.order) > f.max {
		id := f.order[0]
		f.order = f.order[1:]
		delete(f.docs, id)
	}
}

func (f *fallbackStore) delete(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.docs, id)
	}
}

func (f *fallbackStore) query(_ context.Context, vec []float32, k int) []Hit {
	f.mu.RLock()
	defer f.mu.RUnlock()
	hits := make([]Hit, 0, len(f.docs))
	for _, d := range f.docs {
		if score, ok := cosine(vec, d.Vector); ok {
			hits = append(hits, Hit{ChunkID: d.ChunkID, Path: d.Path, Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (f *fallbackStore) len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.docs)
}

func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
