package siftd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sift/internal/core/query"
	"sift/internal/core/walk"
	"sift/internal/core/watch"
	"sift/internal/index/vector"
	"sift/internal/model"
	"sift/internal/workspace"
)

type wsEntry struct {
	ws *workspace.Workspace

	// watch goroutine state, guarded by Handlers.mu.
	cancel context.CancelFunc
	done   chan struct{}
}

type Handlers struct {
	mu         sync.Mutex
	workspaces map[string]*wsEntry
}

func NewHandlers() *Handlers {
	return &Handlers{workspaces: map[string]*wsEntry{}}
}

func (h *Handlers) WorkspaceAdd(p WorkspaceAddParams) (string, error) {
	if h == nil {
		return "", fmt.Errorf("handlers is nil")
	}
	root := strings.TrimSpace(p.Root)
	if root == "" {
		return "", fmt.Errorf("root is required")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rootAbs = filepath.Clean(rootAbs)

	st, err := os.Stat(rootAbs)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("root is not a directory")
	}

	cfg := workspace.Config{
		Root:     rootAbs,
		StateDir: strings.TrimSpace(p.StateDir),
		Backend:  p.Backend,
		Shards:   p.Shards,
		Walk: walk.Options{
			ScanAll:      p.ScanAll,
			IncludeGlobs: p.IncludeGlobs,
			ExcludeGlobs: p.ExcludeGlobs,
		},
		Query: query.Options{
			Limit:       p.Limit,
			Method:      p.Method,
			PerPathTopN: p.PerPathTopN,
			CacheSize:   64,
		},
	}
	if p.Vectors {
		cfg.Embedder = vector.NewHashEmbedder(p.VectorDims)
	}

	ws, err := workspace.Open(cfg)
	if err != nil {
		return "", err
	}

	wsid := uuid.NewString()

	h.mu.Lock()
	h.workspaces[wsid] = &wsEntry{ws: ws}
	h.mu.Unlock()

	return wsid, nil
}

func (h *Handlers) IndexBuild(p IndexBuildParams) (model.ScanReport, error) {
	entry, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return model.ScanReport{}, err
	}
	return entry.ws.Build(context.Background())
}

func (h *Handlers) Query(p QueryParams) (model.FusedResults, error) {
	entry, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return model.FusedResults{}, err
	}
	return entry.ws.Search(context.Background(), p.Q, nil)
}

func (h *Handlers) WatchStart(p WatchStartParams) (WatchStatusResult, error) {
	entry, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return WatchStatusResult{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if entry.cancel != nil {
		// Already running: start is idempotent.
		return h.statusLocked(entry), nil
	}

	if p.DebounceMS > 0 {
		entry.ws.SetWatchOptions(watch.Options{
			Debounce: time.Duration(p.DebounceMS) * time.Millisecond,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	entry.cancel = cancel
	entry.done = done

	go func() {
		defer close(done)
		_ = entry.ws.Watch(ctx)
	}()

	return h.statusLocked(entry), nil
}

func (h *Handlers) WatchStop(p WatchStopParams) (WatchStatusResult, error) {
	entry, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return WatchStatusResult{}, err
	}

	h.mu.Lock()
	cancel := entry.cancel
	done := entry.done
	entry.cancel = nil
	entry.done = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked(entry), nil
}

func (h *Handlers) WatchStatus(p WatchStatusParams) (WatchStatusResult, error) {
	entry, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return WatchStatusResult{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked(entry), nil
}

func (h *Handlers) statusLocked(entry *wsEntry) WatchStatusResult {
	return WatchStatusResult{
		Running:      entry.cancel != nil,
		VectorHealth: entry.ws.VectorHealth().String(),
	}
}

func (h *Handlers) getWorkspace(workspaceID string) (*wsEntry, error) {
	if h == nil {
		return nil, fmt.Errorf("handlers is nil")
	}
	h.mu.Lock()
	entry, ok := h.workspaces[strings.TrimSpace(workspaceID)]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("workspace not found")
	}
	return entry, nil
}

// Close stops all watchers and closes every registered workspace.
func (h *Handlers) Close() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	entries := make([]*wsEntry, 0, len(h.workspaces))
	for id, entry := range h.workspaces {
		entries = append(entries, entry)
		delete(h.workspaces, id)
	}
	h.mu.Unlock()

	var first error
	for _, entry := range entries {
		if entry.cancel != nil {
			entry.cancel()
			<-entry.done
		}
		if err := entry.ws.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
