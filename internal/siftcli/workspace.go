package siftcli

import (
	"path/filepath"

	"sift/internal/core/chunk"
	"sift/internal/core/query"
	"sift/internal/core/walk"
	"sift/internal/index/vector"
	"sift/internal/workspace"
)

// openWorkspace maps CLI options onto a workspace config for root.
func openWorkspace(root string, opts *Options) (*workspace.Workspace, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	cfg := workspace.Config{
		Root:     root,
		StateDir: opts.StateDir,
		Backend:  opts.Backend,
		Shards:   opts.Shards,
		Chunk: chunk.Options{
			MaxTokens: opts.MaxTokens,
			Overlap:   opts.Overlap,
		},
		Walk: walk.Options{
			IncludeGlobs: opts.IncludeGlobs,
			ExcludeGlobs: opts.ExcludeGlobs,
			ScanAll:      opts.ScanAll,
			MaxFileSize:  opts.MaxFileSize,
		},
		Query: query.Options{
			Limit:         opts.Limit,
			MaxCandidates: opts.MaxCandidates,
			Method:        opts.Method,
			LexicalWeight: opts.LexicalWeight,
			VectorWeight:  opts.VectorWeight,
			MinTopMargin:  opts.MinTopMargin,
			PerPathTopN:   opts.PerPathTopN,
			CacheSize:     64,
		},
	}
	if opts.Vectors {
		cfg.Embedder = vector.NewHashEmbedder(opts.VectorDims)
	}
	return workspace.Open(cfg)
}
