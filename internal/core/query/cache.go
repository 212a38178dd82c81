package query

import (
	"fmt"
	"strings"

	"sift/internal/core/cache"
	"sift/internal/model"
)

// ResultCache memoizes fused results keyed by the lexical generation, so
// any commit naturally invalidates every cached query.
type ResultCache struct {
	lru *cache.LRU
}

func NewResultCache(size int) *ResultCache {
	if size <= 0 {
		size = 1
	}
	return &ResultCache{lru: cache.NewLRU(size)}
}

func (c *ResultCache) Get(key string) (model.FusedResults, bool) {
	if c == nil || c.lru == nil {
		return model.FusedResults{}, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		return model.FusedResults{}, false
	}
	res, ok := v.(model.FusedResults)
	if !ok {
		return model.FusedResults{}, false
	}
	return cloneResults(res), true
}

func (c *ResultCache) Put(key string, res model.FusedResults) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Put(key, cloneResults(res))
}

func makeCacheKey(generation uint64, q string, opts Options) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "gen=%d|q=%s", generation, strings.TrimSpace(q))
	_, _ = fmt.Fprintf(&b, "|m=%s|lw=%g|vw=%g", opts.Method, opts.LexicalWeight, opts.VectorWeight)
	_, _ = fmt.Fprintf(&b, "|limit=%d|max=%d|topn=%d", opts.Limit, opts.MaxCandidates, opts.PerPathTopN)
	return b.String()
}

func cloneResults(res model.FusedResults) model.FusedResults {
	out := res
	if len(res.Items) > 0 {
		out.Items = make([]model.FusedResult, len(res.Items))
		copy(out.Items, res.Items)
	}
	return out
}
