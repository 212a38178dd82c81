package chunk

// windowSpans splits lines into token-bounded windows with overlap. base
// offsets the produced spans so callers can window a sub-range of a file.
// A single line over budget still yields a one-line span; the producer
// clamps its text afterwards.
func windowSpans(lines []string, maxTokens int, overlapTokens int, base int) []Span {
	if len(lines) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= maxTokens {
		overlapTokens = maxTokens / 2
	}

	tokens := countLineTokens(lines)

	var out []Span
	start := 0
	for start < len(lines) {
		end := start
		used := 0
		for end < len(lines) {
			if end > start && used+tokens[end] > maxTokens {
				break
			}
			used += tokens[end]
			end++
		}

		out = append(out, Span{Start: base + start, End: base + end})
		if end >= len(lines) {
			break
		}

		// Step back enough lines to cover roughly overlapTokens.
		next := end
		back := 0
		for next > start+1 && back < overlapTokens {
			next--
			back += tokens[next]
		}
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}
