//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

func javaBoundaries(src []byte) ([]Boundary, error) {
	return detect(src, tree_sitter_java.Language(), map[string]struct{}{
		"method_declaration":      {},
		"constructor_declaration": {},
		"interface_declaration":   {},
		"enum_declaration":        {},
	})
}
