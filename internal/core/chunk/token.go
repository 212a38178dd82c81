package chunk

import "strings"

// CountTokens is a deliberately simple whitespace token count. Exact
// tokenizer behavior is a collaborator concern; the budget only needs a
// stable, cheap measure.
func CountTokens(s string) int {
	return len(strings.Fields(s))
}

func countLineTokens(lines []string) []int {
	out := make([]int, len(lines))
	for i, l := range lines {
		out[i] = CountTokens(l)
	}
	return out
}
