package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sift/internal/model"
)

// Stable namespace for deterministic chunk IDs: identical content at the
// same position always maps to the same ID.
var chunkNamespace = uuid.MustParse("9d8f2c61-4a35-4c0e-9b7a-6e5d1f3a8b20")

type Options struct {
	// MaxTokens bounds tokens per chunk. <= 0 uses 512.
	MaxTokens int
	// Overlap is the windowed-fallback overlap in tokens. <= 0 uses 64.
	Overlap int
}

func (o *Options) prepare() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 512
	}
	if o.Overlap <= 0 {
		o.Overlap = 64
	}
}

// Producer splits file content into bounded, metadata-tagged chunks.
// Syntax-aware boundaries are tried first for recognized languages; any
// failure falls back to windowed splitting rather than failing the file.
type Producer struct {
	opts   Options
	syntax Strategy
}

func NewProducer(opts Options) *Producer {
	opts.prepare()
	return &Producer{opts: opts, syntax: newSyntaxStrategy()}
}

// Produce returns the chunks for one file. The returned error is only for
// inputs that cannot be chunked at all (empty content yields zero chunks,
// not an error).
func (p *Producer) Produce(path string, language string, content []byte) ([]model.Chunk, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	lines := splitLines(string(content))
	if len(lines) == 0 {
		return nil, nil
	}

	spans := p.spansFor(language, content, lines)
	chunks := make([]model.Chunk, 0, len(spans))
	for _, sp := range spans {
		if sp.Start < 0 || sp.End > len(lines) || sp.End <= sp.Start {
			continue
		}
		text := strings.Join(lines[sp.Start:sp.End], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		tokens := CountTokens(text)
		if tokens > p.opts.MaxTokens {
			// Single oversized line: keep the span, clamp the indexed text.
			fields := strings.Fields(text)[:p.opts.MaxTokens]
			text = strings.Join(fields, " ")
			tokens = p.opts.MaxTokens
		}

		sum := Checksum(text)
		chunks = append(chunks, model.Chunk{
			ID:         ID(path, sp.Start, sp.End, sum),
			Path:       path,
			Language:   language,
			StartLine:  sp.Start,
			EndLine:    sp.End,
			TokenCount: tokens,
			Checksum:   sum,
			Text:       text,
		})
	}
	return chunks, nil
}

// spansFor prefers syntax boundaries and windows everything else: gaps
// between boundaries, oversized boundaries, and whole files when the
// language is unsupported or the parse fails.
func (p *Producer) spansFor(language string, content []byte, lines []string) []Span {
	windowAll := func() []Span {
		return windowSpans(lines, p.opts.MaxTokens, p.opts.Overlap, 0)
	}

	if language == "" || p.syntax == nil {
		return windowAll()
	}

	bounds, err := p.syntax.Boundaries(language, content)
	if err != nil {
		// Unsupported language, disabled build, or parse failure: all
		// recoverable per file via windowed splitting.
		return windowAll()
	}
	if len(bounds) == 0 {
		return windowAll()
	}

	var out []Span
	cursor := 0
	for _, b := range bounds {
		if b.Start < cursor {
			// Overlapping or out-of-order boundary; clamp forward.
			b.Start = cursor
			if b.End <= b.Start {
				continue
			}
		}
		if b.Start > cursor {
			out = append(out, windowSpans(lines[cursor:b.Start], p.opts.MaxTokens, p.opts.Overlap, cursor)...)
		}
		out = append(out, p.splitOversized(lines, b)...)
		cursor = b.End
	}
	if cursor < len(lines) {
		out = append(out, windowSpans(lines[cursor:], p.opts.MaxTokens, p.opts.Overlap, cursor)...)
	}
	return out
}

func (p *Producer) splitOversized(lines []string, sp Span) []Span {
	if sp.End > len(lines) {
		sp.End = len(lines)
	}
	if sp.End <= sp.Start {
		return nil
	}
	text := strings.Join(lines[sp.Start:sp.End], "\n")
	if CountTokens(text) <= p.opts.MaxTokens {
		return []Span{sp}
	}
	return windowSpans(lines[sp.Start:sp.End], p.opts.MaxTokens, p.opts.Overlap, sp.Start)
}

// Checksum is the content hash used for duplicate and change detection.
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ID derives the stable chunk ID for content at a position.
func ID(path string, startLine int, endLine int, checksum string) string {
	key := fmt.Sprintf("%s|%d|%d|%s", path, startLine, endLine, checksum)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
