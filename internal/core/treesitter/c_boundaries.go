//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
)

func cBoundaries(src []byte) ([]Boundary, error) {
	return detect(src, tree_sitter_c.Language(), map[string]struct{}{
		"function_definition": {},
		"struct_specifier":    {},
		"enum_specifier":      {},
		"union_specifier":     {},
	})
}
