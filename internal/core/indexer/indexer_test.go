package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"sift/internal/core/chunk"
	"sift/internal/core/chunkstore"
	"sift/internal/core/gate"
	"sift/internal/core/walk"
	"sift/internal/deltalog"
	"sift/internal/index/lexical"
	"sift/internal/model"
)

// fakeLexical records mutations in memory so tests can assert exactly
// which chunks each run touched.
type fakeLexical struct {
	mu      sync.Mutex
	docs    map[string]model.Chunk
	added   []string
	removed []string
	gen     uint64
}

func newFakeLexical() *fakeLexical {
	return &fakeLexical{docs: map[string]model.Chunk{}}
}

func (f *fakeLexical) Add(chunks []model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range chunks {
		f.docs[c.ID] = c
		f.added = append(f.added, c.ID)
	}
	return nil
}

func (f *fakeLexical) Remove(ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.docs, id)
		f.removed = append(f.removed, id)
	}
	return nil
}

func (f *fakeLexical) Commit() error {
	f.mu.Lock()
	f.gen++
	f.mu.Unlock()
	return nil
}

func (f *fakeLexical) Search(context.Context, lexical.Query) ([]lexical.Hit, error) {
	return nil, nil
}

func (f *fakeLexical) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakeLexical) Close() error { return nil }

func (f *fakeLexical) reset() {
	f.mu.Lock()
	f.added = nil
	f.removed = nil
	f.mu.Unlock()
}

func (f *fakeLexical) snapshot() (added, removed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.added...), append([]string{}, f.removed...)
}

func (f *fakeLexical) chunkIDs(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id, c := range f.docs {
		if c.Path == path {
			out = append(out, id)
		}
	}
	return out
}

type testPipeline struct {
	*Pipeline
	root    string
	lexical *fakeLexical
	log     *deltalog.Log
	chunks  *chunkstore.Store
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	root := t.TempDir()
	state := t.TempDir()

	store, err := gate.OpenStore(filepath.Join(state, "files.db"))
	if err != nil {
		t.Fatalf("open gate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	g, err := gate.New(store, gate.Options{})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	lg, err := deltalog.Open(filepath.Join(state, "delta"), deltalog.Options{})
	if err != nil {
		t.Fatalf("open delta log: %v", err)
	}
	t.Cleanup(func() { _ = lg.Close() })

	cs, err := chunkstore.Open(filepath.Join(state, "chunks.db"))
	if err != nil {
		t.Fatalf("open chunk store: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })

	fake := newFakeLexical()
	p, err := New(Config{
		Root:     root,
		Gate:     g,
		Producer: chunk.NewProducer(chunk.Options{}),
		Log:      lg,
		Lexical:  fake,
		Chunks:   cs,
		Walk:     walk.Options{ScanAll: true},
		Workers:  2,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return &testPipeline{Pipeline: p, root: root, lexical: fake, log: lg, chunks: cs}
}

func (tp *testPipeline) write(t *testing.T, rel string, content string) {
	t.Helper()
	full := filepath.Join(tp.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func (tp *testPipeline) deltaOps(t *testing.T) []deltalog.Entry {
	t.Helper()
	var out []deltalog.Entry
	if err := tp.log.Replay(0, func(e deltalog.Entry) error {
		out = append(out, e)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	return out
}

func TestBuildIndexesRepository(t *testing.T) {
	tp := newTestPipeline(t)
	tp.write(t, "a.go", "package a\n\nfunc Authenticate() {}\n")
	tp.write(t, "b.go", "package b\n\nfunc Billing() {}\n")
	tp.write(t, "sub/c.py", "def verify():\n    pass\n")

	report, err := tp.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if report.FilesSeen != 3 || report.FilesChunked != 3 {
		t.Fatalf("report=%+v", report)
	}
	if report.Chunks == 0 {
		t.Fatalf("no chunks produced")
	}

	added, _ := tp.lexical.snapshot()
	if len(added) != report.Chunks {
		t.Fatalf("added=%d chunks=%d", len(added), report.Chunks)
	}
	if tp.lexical.Generation() != 1 {
		t.Fatalf("generation=%d", tp.lexical.Generation())
	}

	mark, err := tp.log.Watermark(LexicalConsumer)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if mark != tp.log.NextSeq()-1 {
		t.Fatalf("watermark=%d next=%d", mark, tp.log.NextSeq())
	}
}

func TestRebuildSkipsUnchanged(t *testing.T) {
	tp := newTestPipeline(t)
	tp.write(t, "a.go", "package a\n\nfunc A() {}\n")
	tp.write(t, "b.go", "package b\n\nfunc B() {}\n")

	if _, err := tp.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	seqBefore := tp.log.NextSeq()
	tp.lexical.reset()

	report, err := tp.Build(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if report.FilesChunked != 0 {
		t.Fatalf("rechunked unchanged files: %+v", report)
	}
	added, removed := tp.lexical.snapshot()
	if len(added) != 0 || len(removed) != 0 {
		t.Fatalf("added=%v removed=%v", added, removed)
	}
	if tp.log.NextSeq() != seqBefore {
		t.Fatalf("delta log grew on no-op rebuild")
	}
}

func TestChangedFileRechunksOnlyThatFile(t *testing.T) {
	tp := newTestPipeline(t)
	tp.write(t, "a.go", "package a\n\nfunc Old() {}\n")
	tp.write(t, "b.go", "package b\n\nfunc B() {}\n")
	tp.write(t, "c.go", "package c\n\nfunc C() {}\n")

	if _, err := tp.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	oldA := tp.lexical.chunkIDs("a.go")
	oldB := tp.lexical.chunkIDs("b.go")
	if len(oldA) == 0 || len(oldB) == 0 {
		t.Fatalf("first build incomplete")
	}
	seqBefore := tp.log.NextSeq()
	tp.lexical.reset()

	tp.write(t, "a.go", "package a\n\nfunc New() {}\nfunc Extra() {}\n")
	report, err := tp.Build(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if report.FilesChunked != 1 {
		t.Fatalf("chunked %d files, want 1", report.FilesChunked)
	}

	added, removed := tp.lexical.snapshot()
	if len(removed) != len(oldA) {
		t.Fatalf("removed=%v want old a.go chunks %v", removed, oldA)
	}
	for _, id := range removed {
		found := false
		for _, old := range oldA {
			if id == old {
				found = true
			}
		}
		if !found {
			t.Fatalf("removed %s which is not an a.go chunk", id)
		}
	}
	for _, id := range added {
		for _, old := range oldB {
			if id == old {
				t.Fatalf("b.go chunk re-added")
			}
		}
	}

	// Delta log gains Remove(old A) entries then Add(new A), nothing else.
	var tail []deltalog.Entry
	for _, e := range tp.deltaOps(t) {
		if e.Seq >= seqBefore {
			tail = append(tail, e)
		}
	}
	if len(tail) != len(oldA)+len(added) {
		t.Fatalf("tail=%d entries, want %d", len(tail), len(oldA)+len(added))
	}
	for i, e := range tail {
		if i < len(oldA) && e.Op != deltalog.OpRemove {
			t.Fatalf("entry %d op=%s want remove", i, e.Op)
		}
		if i >= len(oldA) && e.Op != deltalog.OpAdd {
			t.Fatalf("entry %d op=%s want add", i, e.Op)
		}
		if e.Chunk.Path != "a.go" {
			t.Fatalf("entry %d touches %s", i, e.Chunk.Path)
		}
	}

	if ids := tp.lexical.chunkIDs("b.go"); len(ids) != len(oldB) {
		t.Fatalf("b.go chunk set changed: %v", ids)
	}
}

func TestBuildRemovesDeletedFiles(t *testing.T) {
	tp := newTestPipeline(t)
	tp.write(t, "a.go", "package a\n\nfunc A() {}\n")
	tp.write(t, "b.go", "package b\n\nfunc B() {}\n")

	if _, err := tp.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	oldA := tp.lexical.chunkIDs("a.go")
	tp.lexical.reset()

	if err := os.Remove(filepath.Join(tp.root, "a.go")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := tp.Build(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	_, removed := tp.lexical.snapshot()
	if len(removed) != len(oldA) {
		t.Fatalf("removed=%v want %v", removed, oldA)
	}
	if ids := tp.lexical.chunkIDs("a.go"); len(ids) != 0 {
		t.Fatalf("a.go chunks survived: %v", ids)
	}
	for _, id := range oldA {
		if _, ok, _ := tp.chunks.Get(id); ok {
			t.Fatalf("chunk %s survived in the chunk store", id)
		}
	}
}

func TestUpdateAppliesEvents(t *testing.T) {
	tp := newTestPipeline(t)
	tp.write(t, "a.go", "package a\n\nfunc A() {}\n")
	if _, err := tp.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	tp.lexical.reset()

	tp.write(t, "a.go", "package a\n\nfunc Modified() {}\n")
	tp.write(t, "d.go", "package d\n\nfunc D() {}\n")

	report, err := tp.Update(context.Background(), []model.FileEvent{
		{Path: "a.go", Kind: model.EventModify},
		{Path: "d.go", Kind: model.EventCreate},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if report.FilesChunked != 2 {
		t.Fatalf("report=%+v", report)
	}

	if err := os.Remove(filepath.Join(tp.root, "d.go")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := tp.Update(context.Background(), []model.FileEvent{
		{Path: "d.go", Kind: model.EventRemove},
	}); err != nil {
		t.Fatalf("update remove: %v", err)
	}
	if ids := tp.lexical.chunkIDs("d.go"); len(ids) != 0 {
		t.Fatalf("d.go chunks survived: %v", ids)
	}
}

func TestUpdateReportsUnreadableFile(t *testing.T) {
	tp := newTestPipeline(t)
	if err := os.MkdirAll(filepath.Join(tp.root, "vendor"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	// A directory path stats fine but cannot be read as a file; the
	// failure must carry the reason and the cause, not abort the batch.
	report, err := tp.Update(context.Background(), []model.FileEvent{
		{Path: "vendor", Kind: model.EventModify},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("failures=%+v", report.Failures)
	}
	f := report.Failures[0]
	if f.Path != "vendor" || f.Reason != model.FailureIO {
		t.Fatalf("failure=%+v", f)
	}
	if f.Err == "" {
		t.Fatalf("failure carries no cause")
	}
}

func TestResyncRecoversLoggedButUnappliedEntries(t *testing.T) {
	tp := newTestPipeline(t)
	tp.write(t, "a.go", "package a\n\nfunc A() {}\n")
	if _, err := tp.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	tp.lexical.reset()

	// Entries land in the log but never reach the lexical index or the
	// chunk store, as a crash between the append and the batch commit
	// would leave them.
	orphan := model.Chunk{ID: "orphan-1", Path: "b.go", Text: "func Orphan() {}"}
	if _, err := tp.log.Append(deltalog.OpAdd, orphan); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := tp.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}

	if ids := tp.lexical.chunkIDs("b.go"); len(ids) != 1 || ids[0] != "orphan-1" {
		t.Fatalf("lexical ids=%v", ids)
	}
	if _, ok, err := tp.chunks.Get("orphan-1"); err != nil || !ok {
		t.Fatalf("chunk store missing replayed chunk: ok=%v err=%v", ok, err)
	}
	mark, err := tp.log.Watermark(LexicalConsumer)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if mark != tp.log.NextSeq()-1 {
		t.Fatalf("watermark=%d next=%d", mark, tp.log.NextSeq())
	}

	// A second resync has nothing left to replay.
	tp.lexical.reset()
	if err := tp.Resync(context.Background()); err != nil {
		t.Fatalf("resync again: %v", err)
	}
	if added, removed := tp.lexical.snapshot(); len(added) != 0 || len(removed) != 0 {
		t.Fatalf("re-applied entries after catch-up: %v %v", added, removed)
	}
}
