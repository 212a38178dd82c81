//go:build treesitter && cgo

package treesitter

import (
	"unsafe"

	tree_sitter_ts "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

func typescriptBoundaries(src []byte) ([]Boundary, error) {
	return tsBoundaries(src, tree_sitter_ts.LanguageTypescript())
}

func tsxBoundaries(src []byte) ([]Boundary, error) {
	return tsBoundaries(src, tree_sitter_ts.LanguageTSX())
}

func tsBoundaries(src []byte, langPtr unsafe.Pointer) ([]Boundary, error) {
	kinds := jsKinds()
	kinds["interface_declaration"] = struct{}{}
	kinds["enum_declaration"] = struct{}{}
	kinds["type_alias_declaration"] = struct{}{}
	return detect(src, langPtr, kinds)
}
