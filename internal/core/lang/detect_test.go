package lang

import "testing"

func TestDetect(t *testing.T) {
	cases := []struct {
		path    string
		content string
		want    string
	}{
		{"a/b.go", "", "go"},
		{"x.PY", "", "python"},
		{"comp.tsx", "", "tsx"},
		{"run", "#!/usr/bin/env bash\necho hi", "bash"},
		{"tool", "#!/usr/bin/env python3\n", "python"},
		{"blob.bin", "\x00\x01", ""},
	}
	for _, c := range cases {
		if got := Detect(c.path, []byte(c.content)); got != c.want {
			t.Fatalf("Detect(%q)=%q want %q", c.path, got, c.want)
		}
	}
}
