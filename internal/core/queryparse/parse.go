// Package queryparse turns free text into tokens, expanded terms, and
// structured filters before the query ever reaches an index. Malformed
// input is rejected here so the index-side query parsers only see
// well-formed terms.
package queryparse

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxQueryLength bounds worst-case query cost.
const MaxQueryLength = 1024

var ErrInvalidQuery = errors.New("invalid query")

type Intent string

const (
	IntentLookup   Intent = "lookup"
	IntentQuestion Intent = "question"
	IntentPhrase   Intent = "phrase"
)

type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Parsed is the structured form of one query.
type Parsed struct {
	Raw        string
	Tokens     []string
	Expanded   []string
	Language   string
	PathPrefix string
	Intent     Intent
	Complexity Complexity
}

// Parse validates and decomposes q. Filters use the lang:go and
// path:internal/ forms; everything else is tokenized, and identifier
// tokens are expanded on camelCase and snake_case boundaries so a query
// for "ParseConfig" also matches "parse" and "config".
func Parse(q string) (Parsed, error) {
	raw := strings.TrimSpace(q)
	if raw == "" {
		return Parsed{}, fmt.Errorf("%w: empty", ErrInvalidQuery)
	}
	if len(raw) > MaxQueryLength {
		return Parsed{}, fmt.Errorf("%w: length %d exceeds %d", ErrInvalidQuery, len(raw), MaxQueryLength)
	}
	for _, r := range raw {
		if r != '\t' && unicode.IsControl(r) {
			return Parsed{}, fmt.Errorf("%w: control character", ErrInvalidQuery)
		}
	}

	p := Parsed{Raw: raw}
	var free []string
	for _, field := range strings.Fields(raw) {
		switch {
		case strings.HasPrefix(field, "lang:"):
			p.Language = strings.ToLower(strings.TrimPrefix(field, "lang:"))
		case strings.HasPrefix(field, "path:"):
			p.PathPrefix = strings.TrimPrefix(field, "path:")
		default:
			free = append(free, field)
		}
	}

	p.Tokens = tokenize(strings.Join(free, " "))
	if len(p.Tokens) == 0 && p.Language == "" && p.PathPrefix == "" {
		return Parsed{}, fmt.Errorf("%w: no searchable terms", ErrInvalidQuery)
	}
	p.Expanded = expand(p.Tokens)
	p.Intent = classifyIntent(raw, p.Tokens)
	p.Complexity = classifyComplexity(p)
	return p, nil
}

// Terms returns the token set the lexical index should match: the
// original tokens plus their identifier expansions, deduplicated.
func (p Parsed) Terms() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range append(append([]string{}, p.Tokens...), p.Expanded...) {
		t = strings.ToLower(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func tokenize(q string) []string {
	seen := map[string]bool{}
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		term := b.String()
		b.Reset()
		if seen[term] {
			return
		}
		seen[term] = true
		out = append(out, term)
	}

	for _, r := range q {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}

// expand splits identifier-shaped tokens on underscore and lower-to-upper
// case boundaries. Sub-tokens shorter than two runes are dropped.
func expand(tokens []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, tok := range tokens {
		for _, part := range splitIdentifier(tok) {
			part = strings.ToLower(part)
			if len(part) < 2 || part == strings.ToLower(tok) || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

func splitIdentifier(tok string) []string {
	var parts []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			parts = append(parts, b.String())
			b.Reset()
		}
	}
	runes := []rune(tok)
	for i, r := range runes {
		if r == '_' {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			flush()
		}
		b.WriteRune(r)
	}
	flush()
	return parts
}

var questionWords = map[string]bool{
	"how": true, "what": true, "why": true, "where": true, "when": true, "which": true,
}

func classifyIntent(raw string, tokens []string) Intent {
	if strings.HasSuffix(raw, "?") {
		return IntentQuestion
	}
	if len(tokens) > 0 && questionWords[strings.ToLower(tokens[0])] {
		return IntentQuestion
	}
	if len(tokens) == 1 {
		return IntentLookup
	}
	return IntentPhrase
}

func classifyComplexity(p Parsed) Complexity {
	n := len(p.Tokens)
	filters := 0
	if p.Language != "" {
		filters++
	}
	if p.PathPrefix != "" {
		filters++
	}
	switch {
	case n > 5 || filters >= 2 || (n > 2 && filters >= 1):
		return ComplexityComplex
	case n > 2 || filters >= 1:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}
