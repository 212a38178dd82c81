//go:build treesitter && cgo

package treesitter

// Provider detects syntactic unit boundaries (functions, classes, blocks)
// per language. Languages without a grammar report ErrUnsupported so the
// caller can fall back to windowed splitting.
type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) DetectBoundaries(lang string, src []byte) ([]Boundary, error) {
	switch lang {
	case "go":
		return goBoundaries(src)
	case "python":
		return pythonBoundaries(src)
	case "javascript":
		return javascriptBoundaries(src)
	case "typescript":
		return typescriptBoundaries(src)
	case "tsx":
		return tsxBoundaries(src)
	case "java":
		return javaBoundaries(src)
	case "php":
		return phpBoundaries(src)
	case "csharp":
		return csharpBoundaries(src)
	case "json":
		return jsonBoundaries(src)
	case "bash":
		return bashBoundaries(src)
	case "c":
		return cBoundaries(src)
	case "cpp":
		return cppBoundaries(src)
	default:
		return nil, ErrUnsupported
	}
}
