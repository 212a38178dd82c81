//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_c_sharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
)

func csharpBoundaries(src []byte) ([]Boundary, error) {
	return detect(src, tree_sitter_c_sharp.Language(), map[string]struct{}{
		"method_declaration":      {},
		"constructor_declaration": {},
		"interface_declaration":   {},
		"struct_declaration":      {},
		"enum_declaration":        {},
	})
}
