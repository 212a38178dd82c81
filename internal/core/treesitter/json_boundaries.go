//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_json "github.com/tree-sitter/tree-sitter-json/bindings/go"
)

func jsonBoundaries(src []byte) ([]Boundary, error) {
	return detect(src, tree_sitter_json.Language(), map[string]struct{}{
		"pair": {},
	})
}
