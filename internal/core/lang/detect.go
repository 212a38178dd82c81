package lang

import (
	"path/filepath"
	"strings"
)

// Detect returns the language name for a path, falling back to a content
// sniff (shebang line) when the extension is unknown. Empty string means
// unrecognized.
func Detect(path string, content []byte) string {
	if l := byExtension(path); l != "" {
		return l
	}
	return byShebang(content)
}

func byExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(path)))
	switch ext {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".java":
		return "java"
	case ".php":
		return "php"
	case ".cs", ".csx":
		return "csharp"
	case ".json", ".jsonc":
		return "json"
	case ".sh", ".bash":
		return "bash"
	case ".c":
		return "c"
	case ".cc", ".cpp", ".cxx", ".hpp", ".hh", ".hxx", ".h":
		return "cpp"
	case ".md", ".markdown":
		return "markdown"
	case ".yml", ".yaml":
		return "yaml"
	case ".txt":
		return "text"
	default:
		return ""
	}
}

func byShebang(content []byte) string {
	if len(content) < 3 || content[0] != '#' || content[1] != '!' {
		return ""
	}
	line := string(content)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	switch {
	case strings.Contains(line, "python"):
		return "python"
	case strings.Contains(line, "node"):
		return "javascript"
	case strings.Contains(line, "bash"), strings.Contains(line, "/sh"):
		return "bash"
	default:
		return ""
	}
}
