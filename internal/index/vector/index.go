package vector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sift/internal/deltalog"
	"sift/internal/model"
)

// Backend writes get a few quick retries before the failure counts
// against health.
const (
	writeAttempts  = 3
	writeRetryBase = 50 * time.Millisecond
)

// Consumer is the delta-log watermark name for the vector side.
const Consumer = "vector"

type Options struct {
	// FallbackSize bounds the in-memory brute-force store used while the
	// backend is degraded. Defaults to 2048 vectors.
	FallbackSize int
	Logger       *slog.Logger
}

// Index runs embedding and vector storage behind a health tracker.
// While the backend is healthy, writes go to both the backend and a
// bounded fallback store; once the backend degrades, queries are served
// from the fallback so hybrid search keeps both sources. The delta-log
// watermark only advances on successful backend writes, so a recovery
// resync replays exactly the missed entries.
type Index struct {
	backend  Backend
	embedder Embedder
	health   *HealthTracker
	fallback *fallbackStore
	log      *slog.Logger
}

func New(backend Backend, embedder Embedder, opts Options) (*Index, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Index{
		backend:  backend,
		embedder: embedder,
		fallback: newFallbackStore(opts.FallbackSize),
		log:      logger,
	}
	ix.health = NewHealthTracker(func(from, to Health) {
		logger.Warn("vector backend health changed", "from", from.String(), "to", to.String())
	})
	return ix, nil
}

func (ix *Index) Health() Health { return ix.health.State() }

// Apply pushes delta-log entries into the backend and advances the
// watermark through the highest contiguously applied seq. On backend
// failure the remaining entries are kept in the fallback only; the
// watermark stays behind so Resync can replay them later.
func (ix *Index) Apply(ctx context.Context, lg *deltalog.Log, entries []deltalog.Entry) error {
	var applied uint64
	var firstErr error
	for _, e := range entries {
		if err := ix.applyOne(ctx, e); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if firstErr == nil {
			applied = e.Seq
		}
	}
	if applied > 0 && lg != nil {
		if err := lg.SetWatermark(Consumer, applied); err != nil {
			return err
		}
	}
	return firstErr
}

func (ix *Index) applyOne(ctx context.Context, e deltalog.Entry) error {
	switch e.Op {
	case deltalog.OpRemove:
		ix.fallback.delete([]string{e.Chunk.ID})
		if err := ix.writeWithRetry(ctx, func() error {
			return ix.backend.Delete([]string{e.Chunk.ID})
		}); err != nil {
			ix.health.Failure()
			return err
		}
		ix.health.Success()
		return nil
	case deltalog.OpAdd, deltalog.OpUpdate:
		docs, err := ix.embedDocs(ctx, []model.Chunk{e.Chunk})
		if err != nil {
			ix.health.Failure()
			return err
		}
		ix.fallback.put(docs)
		if err := ix.writeWithRetry(ctx, func() error {
			return ix.backend.Upsert(docs)
		}); err != nil {
			ix.health.Failure()
			return err
		}
		ix.health.Success()
		return nil
	default:
		return fmt.Errorf("unknown delta op: %s", e.Op)
	}
}

func (ix *Index) writeWithRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(writeRetryBase << attempt):
		}
	}
	return err
}

// Resync replays the delta log from the vector watermark. Called on
// startup and after the backend recovers.
func (ix *Index) Resync(ctx context.Context, lg *deltalog.Log) error {
	if lg == nil {
		return fmt.Errorf("delta log is required")
	}
	mark, err := lg.Watermark(Consumer)
	if err != nil {
		return err
	}
	var pending []deltalog.Entry
	err = lg.Replay(mark, func(e deltalog.Entry) error {
		pending = append(pending, e)
		return nil
	})
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		// Nothing to replay, but an unhealthy backend still needs to be
		// pinged or recovery would wait on the next write forever.
		ix.pingBackend(ctx)
		return nil
	}
	ix.log.Info("vector resync", "from", mark, "entries", len(pending))
	return ix.Apply(ctx, lg, pending)
}

// pingBackend issues a cheap query against an unhealthy backend so a
// recovered backend returns to healthy even when the watermark is
// already caught up.
func (ix *Index) pingBackend(ctx context.Context) {
	if ix.health.State() == Healthy {
		return
	}
	ping := make([]float32, ix.embedder.Dimensions())
	if _, err := ix.backend.Query(ctx, ping, 1); err != nil {
		ix.health.Failure()
		return
	}
	ix.log.Info("vector backend recovered")
	ix.health.Success()
}

// Query embeds the text and searches the backend, falling back to the
// in-memory cosine store when the backend is unhealthy or erroring.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Hit, bool, error) {
	vecs, err := ix.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, false, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, false, fmt.Errorf("embedder returned %d vectors for one text", len(vecs))
	}
	qvec := vecs[0]

	if ix.health.State() == Healthy {
		hits, err := ix.backend.Query(ctx, qvec, k)
		if err == nil {
			ix.health.Success()
			return hits, false, nil
		}
		ix.health.Failure()
		ix.log.Warn("vector query failed, serving fallback", "error", err)
	}
	return ix.fallback.query(ctx, qvec, k), true, nil
}

func (ix *Index) Close() error {
	if ix == nil || ix.backend == nil {
		return nil
	}
	return ix.backend.Close()
}

func (ix *Index) embedDocs(ctx context.Context, chunks []model.Chunk) ([]Doc, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}
	docs := make([]Doc, len(chunks))
	for i, c := range chunks {
		docs[i] = Doc{ChunkID: c.ID, Path: c.Path, Vector: vecs[i]}
	}
	return docs, nil
}
