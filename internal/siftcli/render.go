package siftcli

import (
	"encoding/json"
	"fmt"
	"strings"

	"sift/internal/model"
)

func RenderJSONL(res model.FusedResults) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	for _, item := range res.Items {
		_ = enc.Encode(item)
	}
	return b.String()
}

func RenderDefault(res model.FusedResults) string {
	var b strings.Builder
	if res.LowConfidence {
		_, _ = fmt.Fprintln(&b, "# low confidence: results may be off topic")
	}
	for _, item := range res.Items {
		_, _ = fmt.Fprintf(&b, "%s:%d: %s\n", item.Path, item.StartLine, bestSnippet(item))
	}
	return b.String()
}

func bestSnippet(item model.FusedResult) string {
	s := strings.TrimSpace(item.Snippet)
	if s == "" {
		return item.ChunkID
	}
	// Keep output one line per hit.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
