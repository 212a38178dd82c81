//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
)

func goBoundaries(src []byte) ([]Boundary, error) {
	return detect(src, tree_sitter_go.Language(), map[string]struct{}{
		"function_declaration": {},
		"method_declaration":   {},
		"type_declaration":     {},
	})
}
