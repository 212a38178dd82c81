package backend

import (
	"fmt"
	"path/filepath"
	"strings"

	"sift/internal/index/bleve"
	"sift/internal/index/lexical"
	"sift/internal/index/sqlitefts"
)

func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "bleve"
	}
	switch name {
	case "sqlite", "sqlite3", "fts5":
		return "sqlite"
	case "bleve":
		return "bleve"
	default:
		return name
	}
}

func DefaultPath(root string, backend string) string {
	backend = NormalizeName(backend)
	switch backend {
	case "sqlite":
		return filepath.Join(root, ".sift", "lexical.db")
	default:
		return filepath.Join(root, ".sift", "lexical.bleve")
	}
}

// Open returns the lexical backend named by backend. shards only applies
// to bleve; the sqlite backend is single-shard.
func Open(backend string, path string, shards int) (lexical.Backend, error) {
	backend = NormalizeName(backend)
	switch backend {
	case "sqlite":
		return sqlitefts.Open(path)
	case "bleve":
		return bleve.Open(path, shards)
	default:
		return nil, fmt.Errorf("unknown lexical backend: %s", backend)
	}
}
