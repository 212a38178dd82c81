// Package indexer drives the full pipeline: scanner, metadata gate,
// chunk producer, delta log, and both indexes. A Pipeline is the
// explicit context object for one run; nothing here is global, so tests
// can build an isolated pipeline per case.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sift/internal/core/chunk"
	"sift/internal/core/chunkstore"
	"sift/internal/core/gate"
	"sift/internal/core/lang"
	"sift/internal/core/walk"
	"sift/internal/deltalog"
	"sift/internal/index/lexical"
	"sift/internal/index/vector"
	"sift/internal/model"
)

// LexicalConsumer is the delta-log watermark name for the lexical side.
const LexicalConsumer = "lexical"

type Config struct {
	Root     string
	Gate     *gate.Gate
	Producer *chunk.Producer
	Log      *deltalog.Log
	Lexical  lexical.Backend
	// Chunks is the arena holding chunk data by id; indexes and the delta
	// log reference chunks through it.
	Chunks *chunkstore.Store
	// Vector is optional; a nil vector index runs the pipeline lexical-only.
	Vector *vector.Index
	Walk   walk.Options

	// Workers bounds scan parallelism. Defaults to GOMAXPROCS, capped at 8.
	Workers int
	// FileTimeout budgets chunking of a single file. Defaults to 10s.
	FileTimeout time.Duration
	Logger      *slog.Logger
}

type Pipeline struct {
	root     string
	gate     *gate.Gate
	producer *chunk.Producer
	log      *deltalog.Log
	lexical  lexical.Backend
	chunks   *chunkstore.Store
	vector   *vector.Index
	walkOpts walk.Options

	workers     int
	fileTimeout time.Duration
	logger      *slog.Logger

	// applyMu serializes the log-before-apply section so a file's Remove
	// and Add entries are contiguous in the delta log.
	applyMu sync.Mutex
}

func New(cfg Config) (*Pipeline, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("root is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("gate is required")
	}
	if cfg.Producer == nil {
		return nil, fmt.Errorf("chunk producer is required")
	}
	if cfg.Log == nil {
		return nil, fmt.Errorf("delta log is required")
	}
	if cfg.Lexical == nil {
		return nil, fmt.Errorf("lexical backend is required")
	}
	if cfg.Chunks == nil {
		return nil, fmt.Errorf("chunk store is required")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers > 8 {
			workers = 8
		}
	}
	timeout := cfg.FileTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// Register both consumers up front so compaction never outruns an
	// index that has yet to apply its first entry.
	if err := cfg.Log.RegisterConsumer(LexicalConsumer); err != nil {
		return nil, err
	}
	if cfg.Vector != nil {
		if err := cfg.Log.RegisterConsumer(vector.Consumer); err != nil {
			return nil, err
		}
	}
	return &Pipeline{
		root:        filepath.Clean(cfg.Root),
		gate:        cfg.Gate,
		producer:    cfg.Producer,
		log:         cfg.Log,
		lexical:     cfg.Lexical,
		chunks:      cfg.Chunks,
		vector:      cfg.Vector,
		walkOpts:    cfg.Walk,
		workers:     workers,
		fileTimeout: timeout,
		logger:      logger,
	}, nil
}

// Build runs a full scan. Per-file failures are collected in the report;
// only infrastructure errors (store, log) abort the run. Cancellation is
// cooperative at file granularity.
func (p *Pipeline) Build(ctx context.Context) (model.ScanReport, error) {
	var report model.ScanReport

	candidates, failures, err := walk.Scan(p.root, p.walkOpts)
	if err != nil {
		return report, fmt.Errorf("scan %s: %w", p.root, err)
	}
	report.Failures = append(report.Failures, failures...)
	report.FilesSkipped += len(failures)

	known, err := p.gate.Known()
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	seen := make(map[string]bool, len(candidates))

	queue := make(chan walk.Candidate, p.workers*2)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for _, c := range candidates {
			select {
			case queue <- c:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for c := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := p.processFile(gctx, c)
				if err != nil {
					return err
				}
				mu.Lock()
				seen[c.Rel] = true
				report.FilesSeen++
				switch {
				case res.failure != nil:
					report.Failures = append(report.Failures, *res.failure)
					report.FilesSkipped++
				case res.chunked:
					report.FilesChunked++
					report.Chunks += res.chunks
				default:
					report.FilesSkipped++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for path := range known {
		if seen[path] {
			continue
		}
		if err := p.removePath(ctx, path); err != nil {
			return report, err
		}
	}

	if err := p.commitIndexes(); err != nil {
		return report, err
	}
	return report, nil
}

// Update applies one debounced batch of filesystem events.
func (p *Pipeline) Update(ctx context.Context, events []model.FileEvent) (model.ScanReport, error) {
	var report model.ScanReport
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rel := filepath.ToSlash(ev.Path)
		switch ev.Kind {
		case model.EventRemove, model.EventRename:
			if err := p.removePath(ctx, rel); err != nil {
				return report, err
			}
			report.FilesSeen++
			continue
		}

		full := filepath.Join(p.root, filepath.FromSlash(rel))
		st, err := os.Stat(full)
		if err != nil {
			if os.IsNotExist(err) {
				// Raced with a delete the debouncer did not see.
				if err := p.removePath(ctx, rel); err != nil {
					return report, err
				}
				report.FilesSeen++
				continue
			}
			report.FilesSeen++
			report.FilesSkipped++
			report.Failures = append(report.Failures, model.FileFailure{
				Path: rel, Reason: model.FailureIO, Err: err.Error(),
			})
			continue
		}
		res, err := p.processFile(ctx, walk.Candidate{
			Rel: rel, Size: st.Size(), MTime: st.ModTime().Unix(),
		})
		if err != nil {
			return report, err
		}
		report.FilesSeen++
		switch {
		case res.failure != nil:
			report.Failures = append(report.Failures, *res.failure)
			report.FilesSkipped++
		case res.chunked:
			report.FilesChunked++
			report.Chunks += res.chunks
		default:
			report.FilesSkipped++
		}
	}
	if err := p.commitIndexes(); err != nil {
		return report, err
	}
	return report, nil
}

// Resync replays delta-log entries either index missed, then compacts
// segments every consumer has applied. Run at workspace open and
// periodically in watch mode.
func (p *Pipeline) Resync(ctx context.Context) error {
	if err := p.resyncLexical(); err != nil {
		return err
	}
	if p.vector != nil {
		if err := p.vector.Resync(ctx, p.log); err != nil {
			return err
		}
	}
	if _, err := p.log.Compact(); err != nil {
		return err
	}
	return nil
}

// resyncLexical re-applies logged entries above the lexical watermark.
// Entries carry full chunks, so a crash between staging and the batch
// commit loses nothing once the log itself survived; re-applying an
// already-staged entry is an upsert and harmless.
func (p *Pipeline) resyncLexical() error {
	mark, err := p.log.Watermark(LexicalConsumer)
	if err != nil {
		return err
	}
	var pending []deltalog.Entry
	err = p.log.Replay(mark, func(e deltalog.Entry) error {
		pending = append(pending, e)
		return nil
	})
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	p.logger.Info("lexical resync", "from", mark, "entries", len(pending))
	for _, e := range pending {
		switch e.Op {
		case deltalog.OpRemove:
			if err := p.chunks.Delete([]string{e.Chunk.ID}); err != nil {
				return err
			}
			if err := p.lexical.Remove([]string{e.Chunk.ID}); err != nil {
				return err
			}
		case deltalog.OpAdd, deltalog.OpUpdate:
			if err := p.chunks.Put([]model.Chunk{e.Chunk}); err != nil {
				return err
			}
			if err := p.lexical.Add([]model.Chunk{e.Chunk}); err != nil {
				return err
			}
		}
	}
	return p.commitIndexes()
}

type fileResult struct {
	chunked bool
	chunks  int
	failure *model.FileFailure
}

func (p *Pipeline) processFile(ctx context.Context, c walk.Candidate) (fileResult, error) {
	full := filepath.Join(p.root, filepath.FromSlash(c.Rel))

	var content []byte
	decision, prior, hash, err := p.gate.Check(c.Rel, c.Size, c.MTime, func() ([]byte, error) {
		var rerr error
		content, rerr = os.ReadFile(full)
		return content, rerr
	})
	if err != nil {
		return fileResult{failure: &model.FileFailure{
			Path: c.Rel, Reason: model.FailureIO, Err: err.Error(),
		}}, nil
	}

	switch decision {
	case gate.Unchanged:
		return fileResult{}, nil
	case gate.Touched:
		if err := p.gate.Touch(c.Rel, c.Size, c.MTime); err != nil {
			return fileResult{}, err
		}
		return fileResult{}, nil
	}

	if content == nil {
		// Hash came from the cache; the content is still needed to chunk.
		content, err = os.ReadFile(full)
		if err != nil {
			return fileResult{failure: &model.FileFailure{
				Path: c.Rel, Reason: model.FailureIO, Err: err.Error(),
			}}, nil
		}
	}
	if walk.IsBinary(content) {
		return fileResult{}, nil
	}

	language := lang.Detect(c.Rel, content)
	chunks, err := p.produceWithTimeout(ctx, c.Rel, language, content)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fileResult{failure: &model.FileFailure{
				Path: c.Rel, Reason: model.FailureTimeout,
				Err: fmt.Sprintf("chunking exceeded %s", p.fileTimeout),
			}}, nil
		}
		if ctx.Err() != nil {
			return fileResult{}, ctx.Err()
		}
		return fileResult{failure: &model.FileFailure{
			Path: c.Rel, Reason: model.FailureParse, Err: err.Error(),
		}}, nil
	}

	if err := p.applyChange(ctx, gate.Entry{
		Path: c.Rel, Size: c.Size, MTime: c.MTime, Hash: hash,
	}, prior.ChunkIDs, chunks); err != nil {
		return fileResult{}, err
	}
	return fileResult{chunked: true, chunks: len(chunks)}, nil
}

// applyChange is the log-before-apply section: the delta log records the
// retirement of the old chunks and the addition of the new ones before
// either index is touched, so a crash in between replays cleanly.
func (p *Pipeline) applyChange(ctx context.Context, entry gate.Entry, retired []string, chunks []model.Chunk) error {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	var entries []deltalog.Entry
	for _, id := range retired {
		seq, err := p.log.Append(deltalog.OpRemove, model.Chunk{ID: id, Path: entry.Path})
		if err != nil {
			return fmt.Errorf("append remove: %w", err)
		}
		entries = append(entries, deltalog.Entry{Seq: seq, Op: deltalog.OpRemove, Chunk: model.Chunk{ID: id, Path: entry.Path}})
	}
	for _, c := range chunks {
		seq, err := p.log.Append(deltalog.OpAdd, c)
		if err != nil {
			return fmt.Errorf("append add: %w", err)
		}
		entries = append(entries, deltalog.Entry{Seq: seq, Op: deltalog.OpAdd, Chunk: c})
	}

	if len(retired) > 0 {
		if err := p.chunks.Delete(retired); err != nil {
			return err
		}
		if err := p.lexical.Remove(retired); err != nil {
			return err
		}
	}
	if len(chunks) > 0 {
		if err := p.chunks.Put(chunks); err != nil {
			return err
		}
		if err := p.lexical.Add(chunks); err != nil {
			return err
		}
	}
	p.applyVector(ctx, entries)

	entry.ChunkIDs = make([]string, len(chunks))
	for i, c := range chunks {
		entry.ChunkIDs[i] = c.ID
	}
	return p.gate.Commit(entry)
}

func (p *Pipeline) removePath(ctx context.Context, path string) error {
	retired, err := p.gate.Remove(path)
	if err != nil {
		return err
	}
	if len(retired) == 0 {
		return nil
	}

	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	var entries []deltalog.Entry
	for _, id := range retired {
		seq, err := p.log.Append(deltalog.OpRemove, model.Chunk{ID: id, Path: path})
		if err != nil {
			return fmt.Errorf("append remove: %w", err)
		}
		entries = append(entries, deltalog.Entry{Seq: seq, Op: deltalog.OpRemove, Chunk: model.Chunk{ID: id, Path: path}})
	}
	if err := p.chunks.Delete(retired); err != nil {
		return err
	}
	if err := p.lexical.Remove(retired); err != nil {
		return err
	}
	p.applyVector(ctx, entries)
	return nil
}

// applyVector pushes entries to the vector side. Failures degrade vector
// health and are replayed later by Resync; they never fail the lexical
// pipeline.
func (p *Pipeline) applyVector(ctx context.Context, entries []deltalog.Entry) {
	if p.vector == nil || len(entries) == 0 {
		return
	}
	if err := p.vector.Apply(ctx, p.log, entries); err != nil {
		p.logger.Warn("vector apply deferred", "entries", len(entries), "error", err)
	}
}

func (p *Pipeline) commitIndexes() error {
	if err := p.lexical.Commit(); err != nil {
		return fmt.Errorf("commit lexical: %w", err)
	}
	return p.log.SetWatermark(LexicalConsumer, p.log.NextSeq()-1)
}

func (p *Pipeline) produceWithTimeout(ctx context.Context, path, language string, content []byte) ([]model.Chunk, error) {
	cctx, cancel := context.WithTimeout(ctx, p.fileTimeout)
	defer cancel()

	type result struct {
		chunks []model.Chunk
		err    error
	}
	done := make(chan result, 1)
	go func() {
		chunks, err := p.producer.Produce(path, language, content)
		done <- result{chunks, err}
	}()
	select {
	case r := <-done:
		return r.chunks, r.err
	case <-cctx.Done():
		return nil, cctx.Err()
	}
}
