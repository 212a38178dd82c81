//go:build treesitter && cgo

package treesitter

import (
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

func phpBoundaries(src []byte) ([]Boundary, error) {
	// Classes are deliberately absent: matching them would swallow their
	// methods, and method granularity chunks better.
	return detect(src, tree_sitter_php.LanguagePHP(), map[string]struct{}{
		"function_definition": {},
		"method_declaration":  {},
	})
}
