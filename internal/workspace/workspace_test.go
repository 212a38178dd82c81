package workspace

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sift/internal/model"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func openTestWorkspace(t *testing.T, root string) *Workspace {
	t.Helper()
	w, err := Open(Config{
		Root:     root,
		StateDir: filepath.Join(t.TempDir(), "state"),
		Backend:  "sqlite",
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestBuildAndSearch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "auth.go", "package auth\n\nfunc Authenticate(user string) error {\n\treturn nil\n}\n")
	writeFile(t, root, "billing.go", "package billing\n\nfunc Invoice() {}\n")

	w := openTestWorkspace(t, root)
	report, err := w.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if report.FilesChunked != 2 {
		t.Fatalf("report=%+v", report)
	}

	res, err := w.Search(context.Background(), "authenticate", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Path != "auth.go" {
		t.Fatalf("items=%v", res.Items)
	}
	if !strings.Contains(res.Items[0].Snippet, "<<") {
		t.Fatalf("snippet=%q", res.Items[0].Snippet)
	}
}

func TestIncrementalUpdate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Original() {}\n")

	w := openTestWorkspace(t, root)
	if _, err := w.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	writeFile(t, root, "a.go", "package a\n\nfunc Replacement() {}\n")
	if _, err := w.Update(context.Background(), []model.FileEvent{
		{Path: "a.go", Kind: model.EventModify},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	res, err := w.Search(context.Background(), "replacement", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("items=%v", res.Items)
	}
	if _, err := w.Search(context.Background(), "original", nil); err == nil {
		t.Fatalf("stale chunk still searchable")
	}
}
