//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_js "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

func javascriptBoundaries(src []byte) ([]Boundary, error) {
	return detect(src, tree_sitter_js.Language(), jsKinds())
}

func jsKinds() map[string]struct{} {
	return map[string]struct{}{
		"function_declaration":           {},
		"generator_function_declaration": {},
		"class_declaration":              {},
		"method_definition":              {},
	}
}
