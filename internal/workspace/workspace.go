// Package workspace assembles one repository's full pipeline: gate,
// delta log, chunk store, lexical and vector indexes, indexer and query
// engine. The CLI and the daemon both open workspaces through it.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"sift/internal/core/chunk"
	"sift/internal/core/chunkstore"
	"sift/internal/core/explain"
	"sift/internal/core/gate"
	"sift/internal/core/indexer"
	"sift/internal/core/query"
	"sift/internal/core/walk"
	"sift/internal/core/watch"
	"sift/internal/deltalog"
	"sift/internal/index/backend"
	"sift/internal/index/lexical"
	"sift/internal/index/vector"
	"sift/internal/index/vector/bleveann"
	"sift/internal/model"
)

// StateDirName is the per-repository index state directory.
const StateDirName = ".sift"

type Config struct {
	Root string
	// StateDir overrides the default <root>/.sift.
	StateDir string
	// Backend names the lexical backend ("bleve" or "sqlite").
	Backend string
	// Shards applies to the bleve backend.
	Shards int

	Chunk chunk.Options
	Walk  walk.Options
	Query query.Options

	// Embedder enables the vector side. Nil runs lexical-only.
	Embedder vector.Embedder

	Watch  watch.Options
	Logger *slog.Logger
}

type Workspace struct {
	cfg      Config
	root     string
	stateDir string
	logger   *slog.Logger

	gateStore *gate.Store
	gate      *gate.Gate
	log       *deltalog.Log
	chunks    *chunkstore.Store
	lexical   lexical.Backend
	vector    *vector.Index
	pipeline  *indexer.Pipeline
	engine    *query.Engine
}

func Open(cfg Config) (*Workspace, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	root = filepath.Clean(root)
	stateDir := strings.TrimSpace(cfg.StateDir)
	if stateDir == "" {
		stateDir = filepath.Join(root, StateDirName)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Workspace{cfg: cfg, root: root, stateDir: stateDir, logger: logger}
	if err := w.open(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Workspace) open() error {
	var err error
	w.gateStore, err = gate.OpenStore(filepath.Join(w.stateDir, "files.db"))
	if err != nil {
		return fmt.Errorf("open gate store: %w", err)
	}
	w.gate, err = gate.New(w.gateStore, gate.Options{})
	if err != nil {
		return err
	}
	w.log, err = deltalog.Open(filepath.Join(w.stateDir, "delta"), deltalog.Options{})
	if err != nil {
		return fmt.Errorf("open delta log: %w", err)
	}
	w.chunks, err = chunkstore.Open(filepath.Join(w.stateDir, "chunks.db"))
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}

	name := backend.NormalizeName(w.cfg.Backend)
	lexPath := filepath.Join(w.stateDir, "lexical.bleve")
	if name == "sqlite" {
		lexPath = filepath.Join(w.stateDir, "lexical.db")
	}
	lex, err := backend.Open(name, lexPath, w.cfg.Shards)
	if err != nil {
		return fmt.Errorf("open lexical backend: %w", err)
	}
	w.lexical = lex

	if w.cfg.Embedder != nil {
		ann, err := bleveann.Open(filepath.Join(w.stateDir, "vectors.bleve"), w.cfg.Embedder.Dimensions())
		if err != nil {
			return fmt.Errorf("open vector backend: %w", err)
		}
		w.vector, err = vector.New(ann, w.cfg.Embedder, vector.Options{Logger: w.logger})
		if err != nil {
			return err
		}
	}

	w.pipeline, err = indexer.New(indexer.Config{
		Root:     w.root,
		Gate:     w.gate,
		Producer: chunk.NewProducer(w.cfg.Chunk),
		Log:      w.log,
		Lexical:  lex,
		Chunks:   w.chunks,
		Vector:   w.vector,
		Walk:     w.cfg.Walk,
		Logger:   w.logger,
	})
	if err != nil {
		return err
	}
	w.engine, err = query.NewEngine(lex, w.vector, w.chunks, w.cfg.Query)
	if err != nil {
		return err
	}

	// Recover anything a crash left logged but unapplied before serving
	// queries.
	return w.pipeline.Resync(context.Background())
}

func (w *Workspace) Root() string { return w.root }

func (w *Workspace) Build(ctx context.Context) (model.ScanReport, error) {
	report, err := w.pipeline.Build(ctx)
	if err != nil {
		return report, err
	}
	return report, w.pipeline.Resync(ctx)
}

func (w *Workspace) Update(ctx context.Context, events []model.FileEvent) (model.ScanReport, error) {
	return w.pipeline.Update(ctx, events)
}

func (w *Workspace) Search(ctx context.Context, q string, ex explain.Explain) (model.FusedResults, error) {
	return w.engine.Search(ctx, q, ex)
}

func (w *Workspace) VectorHealth() vector.Health {
	if w.vector == nil {
		return vector.Down
	}
	return w.vector.Health()
}

// SetWatchOptions replaces the watch tuning used by the next Watch call.
// StateDir and OnBatch are always managed by Watch itself.
func (w *Workspace) SetWatchOptions(opts watch.Options) {
	w.cfg.Watch = opts
}

// Watch runs the filesystem watcher until ctx is done, feeding debounced
// batches through the incremental pipeline. A periodic resync replays
// vector deltas missed during backend outages and compacts the log.
func (w *Workspace) Watch(ctx context.Context) error {
	wopts := w.cfg.Watch
	wopts.StateDir = w.stateDir
	wopts.OnBatch = func(events []model.FileEvent) {
		report, err := w.pipeline.Update(ctx, events)
		if err != nil {
			w.logger.Error("incremental update failed", "error", err)
			return
		}
		w.logger.Info("applied batch",
			"events", len(events),
			"chunked", report.FilesChunked,
			"failures", len(report.Failures))
	}

	watcher, err := watch.NewWatcher(w.root, wopts, w.cfg.Walk)
	if err != nil {
		return err
	}
	defer watcher.Close()

	resync := time.NewTicker(30 * time.Second)
	defer resync.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-resync.C:
				if err := w.pipeline.Resync(ctx); err != nil {
					w.logger.Warn("resync failed", "error", err)
				}
			}
		}
	}()

	return watcher.Run(ctx)
}

func (w *Workspace) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if w.vector != nil {
		keep(w.vector.Close())
	}
	if w.lexical != nil {
		keep(w.lexical.Close())
	}
	if w.chunks != nil {
		keep(w.chunks.Close())
	}
	if w.log != nil {
		keep(w.log.Close())
	}
	if w.gateStore != nil {
		keep(w.gateStore.Close())
	}
	return first
}
