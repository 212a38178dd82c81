package chunk

import (
	"sift/internal/core/treesitter"
)

// Span is a half-open 0-based line range within one file.
type Span struct {
	Start int
	End   int
}

// Strategy detects chunk boundaries for one file. Two variants exist:
// syntax-aware (per supported language, treesitter-backed) and generic
// windowed splitting. Selection follows language detection, not the caller.
type Strategy interface {
	Boundaries(lang string, src []byte) ([]Span, error)
}

type syntaxStrategy struct {
	provider *treesitter.Provider
}

func newSyntaxStrategy() *syntaxStrategy {
	return &syntaxStrategy{provider: treesitter.NewProvider()}
}

func (s *syntaxStrategy) Boundaries(lang string, src []byte) ([]Span, error) {
	bounds, err := s.provider.DetectBoundaries(lang, src)
	if err != nil {
		return nil, err
	}
	out := make([]Span, 0, len(bounds))
	for _, b := range bounds {
		if b.EndLine <= b.StartLine {
			continue
		}
		out = append(out, Span{Start: b.StartLine, End: b.EndLine})
	}
	return out, nil
}
