//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
)

func bashBoundaries(src []byte) ([]Boundary, error) {
	return detect(src, tree_sitter_bash.Language(), map[string]struct{}{
		"function_definition": {},
	})
}
