package query

import "sift/internal/model"

// DedupeByPathTopN keeps at most n results per file, preserving order.
func DedupeByPathTopN(items []model.FusedResult, n int) []model.FusedResult {
	if n <= 0 || len(items) == 0 {
		return items
	}

	seen := map[string]int{}
	out := make([]model.FusedResult, 0, len(items))
	for _, item := range items {
		if seen[item.Path] >= n {
			continue
		}
		seen[item.Path]++
		out = append(out, item)
	}
	return out
}
