// Package fuse merges independently-ranked lexical and vector result
// sets into one ordered list. The two sources score on incomparable
// scales, so candidates are normalized per source before the weighted
// combine.
package fuse

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"sift/internal/model"
)

var (
	// ErrNoCandidates means both sources came back empty.
	ErrNoCandidates = errors.New("no candidates from any source")
	// ErrQualityValidation means fusion produced results but the quality
	// metrics fell below the configured thresholds. Results are still
	// returned alongside the error so callers can surface them flagged
	// low-confidence.
	ErrQualityValidation = errors.New("fused results below quality threshold")
)

const (
	MethodRRF    = "rrf"
	MethodMinMax = "minmax"

	// rrfK is the standard reciprocal-rank-fusion smoothing constant.
	rrfK = 60
)

// Candidate is one scored hit from a single source, carrying enough
// metadata to render the final result without a second lookup.
type Candidate struct {
	ChunkID   string
	Path      string
	StartLine int
	EndLine   int
	Snippet   string
	Score     float64
	Source    model.Source
}

type Options struct {
	// Method selects score normalization: "rrf" (default) or "minmax".
	Method string
	// LexicalWeight and VectorWeight default to 0.6 and 0.4.
	LexicalWeight float64
	VectorWeight  float64
	// MaxCandidates bounds the per-source pool and the final result
	// count. Defaults to 128.
	MaxCandidates int
	// MinTopMargin is the minimum combined-score gap between the first
	// and second result. Zero disables the check.
	MinTopMargin float64
}

func (o Options) prepare() (Options, error) {
	switch strings.TrimSpace(o.Method) {
	case "":
		o.Method = MethodRRF
	case MethodRRF, MethodMinMax:
		o.Method = strings.TrimSpace(o.Method)
	default:
		return o, fmt.Errorf("unknown fusion method: %s", o.Method)
	}
	if o.LexicalWeight == 0 && o.VectorWeight == 0 {
		o.LexicalWeight = 0.6
		o.VectorWeight = 0.4
	}
	if o.LexicalWeight < 0 || o.VectorWeight < 0 {
		return o, fmt.Errorf("weights must be non-negative")
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 128
	}
	return o, nil
}

// Fuse combines the two result sets. Ties in combined score break by
// ascending chunk id so ranking is deterministic.
func Fuse(lexical, vector []Candidate, opts Options) (model.FusedResults, error) {
	opts, err := opts.prepare()
	if err != nil {
		return model.FusedResults{}, err
	}
	if len(lexical) == 0 && len(vector) == 0 {
		return model.FusedResults{}, ErrNoCandidates
	}

	lexical = topN(lexical, opts.MaxCandidates)
	vector = topN(vector, opts.MaxCandidates)

	lexNorm := normalize(lexical, opts.Method)
	vecNorm := normalize(vector, opts.Method)

	merged := make(map[string]*model.FusedResult)
	order := make([]string, 0, len(lexical)+len(vector))

	take := func(c Candidate, norm float64, weight float64) {
		r, ok := merged[c.ChunkID]
		if !ok {
			r = &model.FusedResult{ChunkID: c.ChunkID}
			merged[c.ChunkID] = r
			order = append(order, c.ChunkID)
		}
		r.Score += weight * norm
		if c.Source == model.SourceLexical {
			r.LexicalScore = c.Score
		} else {
			r.VectorScore = c.Score
		}
		if r.Path == "" {
			r.Path = c.Path
			r.StartLine = c.StartLine
			r.EndLine = c.EndLine
		}
		if r.Snippet == "" {
			r.Snippet = c.Snippet
		}
	}
	for i, c := range lexical {
		take(c, lexNorm[i], opts.LexicalWeight)
	}
	for i, c := range vector {
		take(c, vecNorm[i], opts.VectorWeight)
	}

	items := make([]model.FusedResult, 0, len(order))
	for _, id := range order {
		items = append(items, *merged[id])
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ChunkID < items[j].ChunkID
	})
	if len(items) > opts.MaxCandidates {
		items = items[:opts.MaxCandidates]
	}

	out := model.FusedResults{Items: items}
	out.TopMargin, out.ScoreVariance = qualityMetrics(items)

	if opts.MinTopMargin > 0 && len(items) >= 2 && out.TopMargin < opts.MinTopMargin {
		out.LowConfidence = true
		return out, ErrQualityValidation
	}
	return out, nil
}

// normalize maps raw scores onto [0,1] per source. Input must already be
// sorted by descending raw score for rank-based methods.
func normalize(cands []Candidate, method string) []float64 {
	norms := make([]float64, len(cands))
	if len(cands) == 0 {
		return norms
	}
	switch method {
	case MethodRRF:
		for i := range cands {
			norms[i] = 1.0 / float64(rrfK+i+1)
		}
		// Rescale so the top rank maps to 1.
		top := norms[0]
		for i := range norms {
			norms[i] /= top
		}
	default: // minmax
		lo, hi := cands[0].Score, cands[0].Score
		for _, c := range cands[1:] {
			if c.Score < lo {
				lo = c.Score
			}
			if c.Score > hi {
				hi = c.Score
			}
		}
		if hi == lo {
			for i := range norms {
				norms[i] = 1
			}
			return norms
		}
		for i, c := range cands {
			norms[i] = (c.Score - lo) / (hi - lo)
		}
	}
	return norms
}

func topN(cands []Candidate, n int) []Candidate {
	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ChunkID < sorted[j].ChunkID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func qualityMetrics(items []model.FusedResult) (margin float64, variance float64) {
	switch len(items) {
	case 0:
		return 0, 0
	case 1:
		return items[0].Score, 0
	}
	margin = items[0].Score - items[1].Score
	var mean float64
	for _, it := range items {
		mean += it.Score
	}
	mean /= float64(len(items))
	for _, it := range items {
		d := it.Score - mean
		variance += d * d
	}
	variance /= float64(len(items))
	return margin, variance
}
