package chunk

import (
	"strings"
	"testing"
)

func TestProduceWindowed(t *testing.T) {
	p := NewProducer(Options{MaxTokens: 10, Overlap: 2})

	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("alpha beta gamma\n")
	}
	chunks, err := p.Produce("big.txt", "text", []byte(b.String()))
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.TokenCount <= 0 || c.TokenCount > 10 {
			t.Fatalf("token count out of budget: %+v", c)
		}
		if c.EndLine <= c.StartLine {
			t.Fatalf("bad range: %+v", c)
		}
		if c.ID == "" || c.Checksum == "" {
			t.Fatalf("missing id/checksum: %+v", c)
		}
	}
}

func TestProduceEmpty(t *testing.T) {
	p := NewProducer(Options{})
	chunks, err := p.Produce("empty.go", "go", nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestIDStableForContentAndPosition(t *testing.T) {
	sum := Checksum("func main() {}")
	a := ID("main.go", 0, 3, sum)
	b := ID("main.go", 0, 3, sum)
	if a != b {
		t.Fatalf("id not stable: %s vs %s", a, b)
	}
	if c := ID("main.go", 1, 4, sum); c == a {
		t.Fatalf("position change must change id")
	}
	if c := ID("main.go", 0, 3, Checksum("changed")); c == a {
		t.Fatalf("content change must change id")
	}
}

func TestWindowSpansOverlap(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "one two three"
	}
	spans := windowSpans(lines, 9, 3, 0)
	if len(spans) < 2 {
		t.Fatalf("expected several spans, got %v", spans)
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].Start >= spans[i-1].End {
			t.Fatalf("expected overlap between %v and %v", spans[i-1], spans[i])
		}
		if spans[i].Start <= spans[i-1].Start {
			t.Fatalf("spans must advance: %v then %v", spans[i-1], spans[i])
		}
	}
	if spans[len(spans)-1].End != len(lines) {
		t.Fatalf("last span must reach end: %v", spans[len(spans)-1])
	}
}
