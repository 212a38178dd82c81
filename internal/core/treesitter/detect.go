//go:build treesitter && cgo

package treesitter

import (
	"sort"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Descending stops at a matched node: nested definitions stay inside their
// parent unit. The depth cap keeps pathological trees from recursing away.
const maxWalkDepth = 64

func detect(src []byte, langPtr unsafe.Pointer, kinds map[string]struct{}) ([]Boundary, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	lang := tree_sitter.NewLanguage(langPtr)
	if err := parser.SetLanguage(lang); err != nil {
		return nil, err
	}

	tree := parser.Parse(src, nil)
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}

	var out []Boundary
	var walk func(n *tree_sitter.Node, depth int)
	walk = func(n *tree_sitter.Node, depth int) {
		if n == nil || depth > maxWalkDepth {
			return
		}
		if _, ok := kinds[n.Kind()]; ok {
			if b, valid := nodeBoundary(n); valid {
				out = append(out, b)
			}
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i), depth+1)
		}
	}
	walk(root, 0)

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartLine == out[j].StartLine {
			return out[i].EndLine < out[j].EndLine
		}
		return out[i].StartLine < out[j].StartLine
	})
	return out, nil
}

func nodeBoundary(n *tree_sitter.Node) (Boundary, bool) {
	sp := n.StartPosition()
	ep := n.EndPosition()

	sl := int(sp.Row)
	el := int(ep.Row) + 1
	// A node ending at column 0 does not occupy that row.
	if ep.Column == 0 && el > sl+1 {
		el--
	}
	if el <= sl {
		return Boundary{}, false
	}
	return Boundary{StartLine: sl, EndLine: el}, true
}
