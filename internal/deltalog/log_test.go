package deltalog

import (
	"os"
	"path/filepath"
	"testing"

	"sift/internal/model"
)

func TestAppendAssignsStrictlyIncreasingSeqs(t *testing.T) {
	l, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	var last uint64
	for i := 0; i < 5; i++ {
		seq, err := l.Append(OpAdd, model.Chunk{ID: "c", Path: "a.go"})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if seq <= last {
			t.Fatalf("seq %d not increasing after %d", seq, last)
		}
		last = seq
	}
}

func TestReplaySkipsWatermarkedEntries(t *testing.T) {
	l, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	for i := 0; i < 4; i++ {
		if _, err := l.Append(OpAdd, model.Chunk{ID: "c", Path: "a.go"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var seen []uint64
	if err := l.Replay(2, func(e Entry) error {
		seen = append(seen, e.Seq)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(seen) != 2 || seen[0] != 3 || seen[1] != 4 {
		t.Fatalf("seen=%v", seen)
	}
}

func TestReopenRecoversSequence(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seq1, _ := l.Append(OpAdd, model.Chunk{ID: "c1"})
	_ = l.Close()

	l2, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = l2.Close() })

	seq2, err := l2.Append(OpRemove, model.Chunk{ID: "c1"})
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if seq2 != seq1+1 {
		t.Fatalf("seq2=%d want %d", seq2, seq1+1)
	}
}

func TestReopenTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = l.Append(OpAdd, model.Chunk{ID: "c1"})
	_ = l.Close()

	// Simulate a crash mid-append: a length prefix with no payload.
	segs, _ := os.ReadDir(dir)
	for _, de := range segs {
		if filepath.Ext(de.Name()) == ".log" {
			f, _ := os.OpenFile(filepath.Join(dir, de.Name()), os.O_WRONLY|os.O_APPEND, 0o644)
			_, _ = f.Write([]byte{0, 0, 0, 99, 'x'})
			_ = f.Close()
		}
	}

	l2, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = l2.Close() })

	count := 0
	_ = l2.Replay(0, func(e Entry) error { count++; return nil })
	if count != 1 {
		t.Fatalf("count=%d, torn record must be dropped", count)
	}
}

func TestCompactRespectsMinWatermark(t *testing.T) {
	dir := t.TempDir()
	// Tiny segments so every append rotates.
	l, err := Open(dir, Options{SegmentMaxBytes: 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	for i := 0; i < 4; i++ {
		if _, err := l.Append(OpAdd, model.Chunk{ID: "c"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	_ = l.SetWatermark("lexical", 4)
	_ = l.SetWatermark("vector", 2)

	removed, err := l.Compact()
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if removed == 0 {
		t.Fatalf("expected some segments removed")
	}

	// Entries above the vector watermark must survive compaction.
	var seen []uint64
	_ = l.Replay(2, func(e Entry) error { seen = append(seen, e.Seq); return nil })
	if len(seen) != 2 || seen[0] != 3 || seen[1] != 4 {
		t.Fatalf("seen=%v", seen)
	}
}

func TestWatermarkNeverMovesBackwards(t *testing.T) {
	l, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	_ = l.SetWatermark("lexical", 5)
	_ = l.SetWatermark("lexical", 3)
	seq, _ := l.Watermark("lexical")
	if seq != 5 {
		t.Fatalf("seq=%d", seq)
	}
}

func TestCompactWaitsForRegisteredConsumer(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, Options{SegmentMaxBytes: 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	// A registered consumer that has not applied anything yet pins every
	// segment, even when another consumer is fully caught up.
	if err := l.RegisterConsumer("vector"); err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := l.Append(OpAdd, model.Chunk{ID: "c"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = l.SetWatermark("lexical", 4)

	removed, err := l.Compact()
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed %d segments a consumer still needs", removed)
	}
	count := 0
	_ = l.Replay(0, func(Entry) error { count++; return nil })
	if count != 4 {
		t.Fatalf("count=%d, all entries must survive", count)
	}

	// Registering again after progress must not move the watermark back.
	_ = l.SetWatermark("vector", 3)
	if err := l.RegisterConsumer("vector"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	mark, err := l.Watermark("vector")
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if mark != 3 {
		t.Fatalf("mark=%d want 3", mark)
	}
}
