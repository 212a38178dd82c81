//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

func cppBoundaries(src []byte) ([]Boundary, error) {
	return detect(src, tree_sitter_cpp.Language(), map[string]struct{}{
		"function_definition":  {},
		"class_specifier":      {},
		"struct_specifier":     {},
		"enum_specifier":       {},
		"template_declaration": {},
	})
}
