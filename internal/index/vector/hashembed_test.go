package vector

import (
	"context"
	"testing"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.EmbedBatch(context.Background(), []string{"authenticate user"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, _ := e.EmbedBatch(context.Background(), []string{"authenticate user"})
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("not deterministic at %d", i)
		}
	}
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(64)
	vecs, err := e.EmbedBatch(context.Background(), []string{
		"verify user credentials",
		"check user credentials",
		"invoice rounding",
	})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	near, _ := cosine(vecs[0], vecs[1])
	far, _ := cosine(vecs[0], vecs[2])
	if near <= far {
		t.Fatalf("near=%f far=%f", near, far)
	}
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder(64)
	vecs, _ := e.EmbedBatch(context.Background(), []string{"some text here"})
	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	if norm < 0.99 || norm > 1.01 {
		t.Fatalf("norm=%f", norm)
	}
}
