// Package query runs hybrid search: the parsed query fans out to the
// lexical and vector indexes in parallel and the two candidate sets
// converge at the fusion engine.
package query

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sift/internal/core/chunkstore"
	"sift/internal/core/explain"
	"sift/internal/core/fuse"
	"sift/internal/core/queryparse"
	"sift/internal/index/lexical"
	"sift/internal/index/vector"
	"sift/internal/model"
)

type Options struct {
	// Limit caps returned results. Defaults to 20.
	Limit int
	// MaxCandidates bounds the per-source pool fed to fusion. Defaults
	// to 128.
	MaxCandidates int
	// Method, weights and MinTopMargin pass through to fusion.
	Method        string
	LexicalWeight float64
	VectorWeight  float64
	MinTopMargin  float64
	// PerPathTopN keeps at most N results per file. <= 0 keeps all.
	PerPathTopN int
	// CacheSize bounds the result cache. <= 0 disables caching.
	CacheSize int
}

func (o *Options) prepare() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 128
	}
}

type Engine struct {
	lexical lexical.Backend
	vector  *vector.Index
	chunks  *chunkstore.Store
	cache   *ResultCache
	opts    Options
}

// NewEngine builds a query engine over the given backends. vector may be
// nil for a lexical-only deployment.
func NewEngine(lex lexical.Backend, vec *vector.Index, chunks *chunkstore.Store, opts Options) (*Engine, error) {
	if lex == nil {
		return nil, fmt.Errorf("lexical backend is required")
	}
	if chunks == nil {
		return nil, fmt.Errorf("chunk store is required")
	}
	opts.prepare()
	var cache *ResultCache
	if opts.CacheSize > 0 {
		cache = NewResultCache(opts.CacheSize)
	}
	return &Engine{lexical: lex, vector: vec, chunks: chunks, cache: cache, opts: opts}, nil
}

// Search parses raw, queries both sources in parallel and fuses the
// candidates. A result set failing the quality threshold comes back with
// LowConfidence set rather than as an error. ex may be nil.
func (e *Engine) Search(ctx context.Context, raw string, ex explain.Explain) (model.FusedResults, error) {
	parsed, err := queryparse.Parse(raw)
	if err != nil {
		return model.FusedResults{}, err
	}
	if ex != nil {
		ex.KV("intent", string(parsed.Intent))
		ex.KV("complexity", string(parsed.Complexity))
	}

	key := makeCacheKey(e.lexical.Generation(), raw, e.opts)
	if res, ok := e.cache.Get(key); ok {
		if ex != nil {
			ex.KV("cache_hit", true)
		}
		return res, nil
	}

	var lexCands, vecCands []fuse.Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if ex != nil {
			defer ex.Timer("lexical_search")()
		}
		hits, err := e.lexical.Search(gctx, lexical.Query{
			Terms:      parsed.Terms(),
			Language:   parsed.Language,
			PathPrefix: parsed.PathPrefix,
			Limit:      e.opts.MaxCandidates,
		})
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		for _, h := range hits {
			lexCands = append(lexCands, fuse.Candidate{
				ChunkID:   h.ChunkID,
				Path:      h.Path,
				StartLine: h.StartLine,
				EndLine:   h.EndLine,
				Snippet:   h.Snippet,
				Score:     h.Score,
				Source:    model.SourceLexical,
			})
		}
		return nil
	})
	if e.vector != nil {
		g.Go(func() error {
			if ex != nil {
				defer ex.Timer("vector_search")()
			}
			hits, degraded, err := e.vector.Query(gctx, raw, e.opts.MaxCandidates)
			if err != nil {
				return fmt.Errorf("vector search: %w", err)
			}
			if degraded && ex != nil {
				ex.KV("vector_degraded", true)
			}
			vecCands = e.resolveVectorHits(hits, parsed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.FusedResults{}, err
	}

	res, err := fuse.Fuse(lexCands, vecCands, fuse.Options{
		Method:        e.opts.Method,
		LexicalWeight: e.opts.LexicalWeight,
		VectorWeight:  e.opts.VectorWeight,
		MaxCandidates: e.opts.MaxCandidates,
		MinTopMargin:  e.opts.MinTopMargin,
	})
	if err != nil && !errors.Is(err, fuse.ErrQualityValidation) {
		return model.FusedResults{}, err
	}

	if e.opts.PerPathTopN > 0 {
		res.Items = DedupeByPathTopN(res.Items, e.opts.PerPathTopN)
	}
	if len(res.Items) > e.opts.Limit {
		res.Items = res.Items[:e.opts.Limit]
	}
	if ex != nil {
		ex.KV("lexical_candidates", len(lexCands))
		ex.KV("vector_candidates", len(vecCands))
		ex.KV("results", len(res.Items))
		if res.LowConfidence {
			ex.KV("low_confidence", true)
		}
	}

	e.cache.Put(key, res)
	return res, nil
}

// resolveVectorHits looks the hits up in the chunk store; vector hits
// carry only ids, the store supplies line ranges and text for snippets.
func (e *Engine) resolveVectorHits(hits []vector.Hit, parsed queryparse.Parsed) []fuse.Candidate {
	var out []fuse.Candidate
	for _, h := range hits {
		c, ok, err := e.chunks.Get(h.ChunkID)
		if err != nil || !ok {
			// Retired between query and resolve; drop it.
			continue
		}
		if parsed.Language != "" && c.Language != parsed.Language {
			continue
		}
		if parsed.PathPrefix != "" && !hasPrefix(c.Path, parsed.PathPrefix) {
			continue
		}
		out = append(out, fuse.Candidate{
			ChunkID:   c.ID,
			Path:      c.Path,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Snippet:   Snippet(c.Text, parsed.Terms()),
			Score:     h.Score,
			Source:    model.SourceVector,
		})
	}
	return out
}

func hasPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}
