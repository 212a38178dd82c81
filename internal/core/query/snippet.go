package query

import (
	"strings"
	"unicode"

	"sift/internal/core/search"
)

// Snippet picks the first line of text containing one of the terms and
// returns it with the match wrapped in << >>, windowed to keep long
// lines readable. Falls back to the first non-empty line.
func Snippet(text string, terms []string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	if m, ok := search.First(text, terms); ok {
		line := strings.TrimRight(m.Text, " \t\r")
		start := m.Col - 1
		if start < len(line) {
			return windowedHighlight(line, start, wordEnd(line, start+m.Len))
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func windowedHighlight(line string, start int, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(line) {
		end = len(line)
	}
	if start >= end {
		return strings.TrimSpace(line)
	}

	const context = 80
	winStart := start - context
	if winStart < 0 {
		winStart = 0
	}
	winEnd := end + context
	if winEnd > len(line) {
		winEnd = len(line)
	}

	prefix := ""
	suffix := ""
	if winStart > 0 {
		prefix = "…"
	}
	if winEnd < len(line) {
		suffix = "…"
	}

	window := line[winStart:winEnd]
	localStart := start - winStart
	localEnd := end - winStart

	var b strings.Builder
	b.Grow(len(prefix) + len(window) + len(suffix) + 4)
	b.WriteString(prefix)
	b.WriteString(window[:localStart])
	b.WriteString("<<")
	b.WriteString(window[localStart:localEnd])
	b.WriteString(">>")
	b.WriteString(window[localEnd:])
	b.WriteString(suffix)
	return strings.TrimSpace(b.String())
}

// wordEnd extends end to the end of the identifier starting inside the
// match, so highlights cover whole tokens.
func wordEnd(line string, end int) int {
	for end < len(line) {
		r := rune(line[end])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		end++
	}
	return end
}
