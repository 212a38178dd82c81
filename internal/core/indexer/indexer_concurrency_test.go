package indexer

import (
	"context"
	"fmt"
	"testing"
)

func TestBuildManyFilesInParallel(t *testing.T) {
	tp := newTestPipeline(t)
	const n = 60
	for i := 0; i < n; i++ {
		tp.write(t, fmt.Sprintf("pkg%02d/f.go", i),
			fmt.Sprintf("package pkg%02d\n\nfunc Handler%02d() {}\n", i, i))
	}

	report, err := tp.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if report.FilesSeen != n || report.FilesChunked != n {
		t.Fatalf("report=%+v", report)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("failures=%v", report.Failures)
	}

	// Sequence numbers must be strictly increasing across workers.
	entries := tp.deltaOps(t)
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq <= entries[i-1].Seq {
			t.Fatalf("seq not increasing at %d: %d then %d", i, entries[i-1].Seq, entries[i].Seq)
		}
	}
	if uint64(len(entries)) != tp.log.NextSeq()-1 {
		t.Fatalf("entries=%d next=%d", len(entries), tp.log.NextSeq())
	}
}

func TestBuildCancellation(t *testing.T) {
	tp := newTestPipeline(t)
	for i := 0; i < 20; i++ {
		tp.write(t, fmt.Sprintf("f%02d.go", i), "package f\n\nfunc F() {}\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tp.Build(ctx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
