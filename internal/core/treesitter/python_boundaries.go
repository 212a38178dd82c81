//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

func pythonBoundaries(src []byte) ([]Boundary, error) {
	return detect(src, tree_sitter_python.Language(), map[string]struct{}{
		"function_definition":  {},
		"class_definition":     {},
		"decorated_definition": {},
	})
}
