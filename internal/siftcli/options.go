package siftcli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sift/internal/core/fuse"
)

type Options struct {
	StateDir     string
	Backend      string
	Shards       int
	ScanAll      bool
	IncludeGlobs []string
	ExcludeGlobs []string
	MaxFileSize  int64

	MaxTokens int
	Overlap   int

	Vectors    bool
	VectorDims int

	Limit         int
	MaxCandidates int
	Method        string
	LexicalWeight float64
	VectorWeight  float64
	MinTopMargin  float64
	PerPathTopN   int

	Jsonl   bool
	Explain string
	Verbose bool

	// testMode short-circuits commands after flag parsing so tests can
	// exercise the surface without a repository.
	testMode bool
}

func isTestMode(cmd *cobra.Command) bool {
	opts := optionsFrom(cmd)
	return opts != nil && opts.testMode
}

func (o *Options) Prepare() error {
	o.Backend = strings.ToLower(strings.TrimSpace(o.Backend))
	if o.Limit < 0 {
		return fmt.Errorf("limit must be >= 0")
	}
	switch strings.TrimSpace(o.Method) {
	case "", fuse.MethodRRF, fuse.MethodMinMax:
	default:
		return fmt.Errorf("invalid --fusion %q (expected: rrf|minmax)", o.Method)
	}
	if o.LexicalWeight < 0 || o.VectorWeight < 0 {
		return fmt.Errorf("fusion weights must be >= 0")
	}
	switch o.Explain {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid --explain %q (expected: text|json)", o.Explain)
	}
	return nil
}

type optionsKey struct{}

func optionsFrom(cmd *cobra.Command) *Options {
	if cmd == nil {
		return nil
	}
	root := cmd.Root()
	if root == nil {
		root = cmd
	}
	v := root.Context().Value(optionsKey{})
	opts, _ := v.(*Options)
	return opts
}

func withOptionsContext(cmd *cobra.Command, opts *Options) {
	cmd.SetContext(context.WithValue(context.Background(), optionsKey{}, opts))
}

func bindFlags(cmd *cobra.Command, opts *Options) {
	cmd.PersistentFlags().StringVarP(&opts.StateDir, "state-dir", "d", opts.StateDir, "index state directory (default: <root>/.sift)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", opts.Backend, "lexical backend: bleve|sqlite")
	cmd.PersistentFlags().IntVar(&opts.Shards, "shards", opts.Shards, "lexical shard count (bleve only)")
	cmd.PersistentFlags().BoolVarP(&opts.ScanAll, "all", "A", opts.ScanAll, "scan hidden and generated files too")
	cmd.PersistentFlags().StringSliceVarP(&opts.ExcludeGlobs, "exclude", "x", nil, "exclude these files (comma separated: -x *.js,*.sql)")
	cmd.PersistentFlags().StringSliceVarP(&opts.IncludeGlobs, "glob", "g", nil, "only index these files (can repeat)")
	cmd.PersistentFlags().Int64Var(&opts.MaxFileSize, "max-file-size", opts.MaxFileSize, "skip files larger than this many bytes")

	cmd.PersistentFlags().IntVar(&opts.MaxTokens, "chunk-tokens", opts.MaxTokens, "max tokens per chunk")
	cmd.PersistentFlags().IntVar(&opts.Overlap, "chunk-overlap", opts.Overlap, "token overlap for windowed chunks")

	cmd.PersistentFlags().BoolVar(&opts.Vectors, "vectors", opts.Vectors, "enable the vector index (local hashing embedder)")
	cmd.PersistentFlags().IntVar(&opts.VectorDims, "vector-dims", opts.VectorDims, "embedding dimensions for the local embedder")

	cmd.PersistentFlags().IntVarP(&opts.Limit, "limit", "n", opts.Limit, "max results to return")
	cmd.PersistentFlags().IntVar(&opts.MaxCandidates, "max-candidates", opts.MaxCandidates, "per-source candidate pool bound")
	cmd.PersistentFlags().StringVar(&opts.Method, "fusion", opts.Method, "fusion normalization: rrf|minmax")
	cmd.PersistentFlags().Float64Var(&opts.LexicalWeight, "lexical-weight", opts.LexicalWeight, "lexical fusion weight")
	cmd.PersistentFlags().Float64Var(&opts.VectorWeight, "vector-weight", opts.VectorWeight, "vector fusion weight")
	cmd.PersistentFlags().Float64Var(&opts.MinTopMargin, "min-margin", opts.MinTopMargin, "quality threshold on the top-1 margin (0 disables)")
	cmd.PersistentFlags().IntVar(&opts.PerPathTopN, "per-path", opts.PerPathTopN, "max results per file (0 keeps all)")

	cmd.PersistentFlags().BoolVar(&opts.Jsonl, "jsonl", opts.Jsonl, "output as JSONL")
	cmd.PersistentFlags().StringVar(&opts.Explain, "explain", opts.Explain, "print explain info to stderr (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "debug logging")
}

func newDefaultOptions() *Options {
	return &Options{
		Backend:       "bleve",
		Limit:         20,
		MaxCandidates: 128,
		Method:        "rrf",
		LexicalWeight: 0.6,
		VectorWeight:  0.4,
		VectorDims:    256,
	}
}

// ExecuteForTest runs cmd capturing output.
func ExecuteForTest(cmd *cobra.Command) (string, Options, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if opts := optionsFrom(cmd); opts != nil {
		opts.testMode = true
	}

	err := cmd.Execute()

	opts := optionsFrom(cmd)
	if opts == nil {
		return out.String(), Options{}, err
	}
	return out.String(), *opts, err
}
