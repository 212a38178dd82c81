package query

import (
	"testing"

	"sift/internal/model"
)

func TestDedupeByPathTopN(t *testing.T) {
	items := []model.FusedResult{
		{ChunkID: "1", Path: "a.go"},
		{ChunkID: "2", Path: "a.go"},
		{ChunkID: "3", Path: "b.go"},
		{ChunkID: "4", Path: "a.go"},
	}
	out := DedupeByPathTopN(items, 2)
	if len(out) != 3 {
		t.Fatalf("len=%d", len(out))
	}
	if out[0].ChunkID != "1" || out[1].ChunkID != "2" || out[2].ChunkID != "3" {
		t.Fatalf("out=%v", out)
	}
}

func TestDedupeDisabled(t *testing.T) {
	items := []model.FusedResult{{ChunkID: "1", Path: "a.go"}, {ChunkID: "2", Path: "a.go"}}
	if out := DedupeByPathTopN(items, 0); len(out) != 2 {
		t.Fatalf("out=%v", out)
	}
}
