package siftcli

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExplainJSONParseable(t *testing.T) {
	ex := NewExplainCollector(ExplainOptions{Format: "json"})
	ex.KV("intent", "lookup")
	ex.KV("cache_hit", false)
	done := ex.Timer("lexical_search")
	done()
	line := ex.EmitToStringForTest()
	var v map[string]any
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if v["intent"] != "lookup" {
		t.Fatalf("intent=%v", v["intent"])
	}
}

func TestExplainTextSorted(t *testing.T) {
	ex := NewExplainCollector(ExplainOptions{})
	ex.KV("b_key", 2)
	ex.KV("a_key", 1)
	out := ex.EmitToStringForTest()
	if !strings.HasPrefix(out, "explain:") {
		t.Fatalf("missing header: %q", out)
	}
	if strings.Index(out, "a_key") > strings.Index(out, "b_key") {
		t.Fatalf("keys not sorted: %q", out)
	}
}

func TestExplainNilSafe(t *testing.T) {
	var ex *ExplainCollector
	ex.KV("x", 1)
	ex.Timer("y")()
	if got := ex.EmitToStringForTest(); got != "" {
		t.Fatalf("nil collector emitted %q", got)
	}
}
