// Package search locates keyword occurrences inside chunk text. The
// query layer uses it to pick highlight positions for snippets.
package search

import (
	"strings"

	"sift/internal/model"
)

// Locate returns, per line of text, the first occurrence of any term.
// Longer terms win when several match the same line, so "authenticate"
// beats "auth". Matching is case-insensitive; Line and Col are 1-based.
func Locate(text string, terms []string) []model.Match {
	needles := make([]string, 0, len(terms))
	for _, t := range terms {
		if strings.TrimSpace(t) != "" {
			needles = append(needles, strings.ToLower(t))
		}
	}
	if len(needles) == 0 {
		return nil
	}
	// Longest first.
	for i := 0; i < len(needles); i++ {
		for j := i + 1; j < len(needles); j++ {
			if len(needles[j]) > len(needles[i]) {
				needles[i], needles[j] = needles[j], needles[i]
			}
		}
	}

	var out []model.Match
	for i, line := range strings.Split(text, "\n") {
		hay := strings.ToLower(line)
		for _, needle := range needles {
			idx := strings.Index(hay, needle)
			if idx < 0 {
				continue
			}
			out = append(out, model.Match{
				Line: i + 1,
				Col:  idx + 1,
				Len:  len(needle),
				Text: line,
			})
			break
		}
	}
	return out
}

// First returns the earliest match of any term, or false when no term
// occurs in text.
func First(text string, terms []string) (model.Match, bool) {
	ms := Locate(text, terms)
	if len(ms) == 0 {
		return model.Match{}, false
	}
	return ms[0], true
}
