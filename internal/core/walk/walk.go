package walk

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"sift/internal/model"
)

type Options struct {
	IncludeGlobs []string
	ExcludeGlobs []string
	ScanAll      bool

	// MaxFileSize in bytes; files above it are reported as skipped, not
	// fatal. <= 0 means no limit.
	MaxFileSize int64
}

// Candidate is a file accepted by the scanner, path relative to root.
type Candidate struct {
	Rel   string
	Size  int64
	MTime int64
}

// Scan walks root honoring ignore rules, hidden/default skips and the size
// limit. Oversized files come back as failures with reason file_too_large;
// the walk itself never aborts for a single file.
func Scan(root string, opts Options) ([]Candidate, []model.FileFailure, error) {
	ig, err := loadIgnoreMatcher(root, opts.ScanAll)
	if err != nil {
		return nil, nil, err
	}

	var files []Candidate
	var failures []model.FileFailure
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		name := d.Name()
		if d.IsDir() {
			if !opts.ScanAll && (isHidden(name) || isDefaultSkippedDir(name)) {
				return filepath.SkipDir
			}
			if !opts.ScanAll && ig.isIgnored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !opts.ScanAll && isHidden(name) {
			return nil
		}
		if !opts.ScanAll && ig.isIgnored(rel, false) {
			return nil
		}
		if len(opts.IncludeGlobs) > 0 && !anyGlobMatch(opts.IncludeGlobs, rel) {
			return nil
		}
		if anyGlobMatch(opts.ExcludeGlobs, rel) {
			return nil
		}

		st, err := d.Info()
		if err != nil {
			failures = append(failures, model.FileFailure{
				Path:   rel,
				Reason: model.FailureIO,
				Err:    err.Error(),
			})
			return nil
		}
		if opts.MaxFileSize > 0 && st.Size() > opts.MaxFileSize {
			failures = append(failures, model.FileFailure{
				Path:   rel,
				Reason: model.FailureTooLarge,
			})
			return nil
		}

		files = append(files, Candidate{Rel: rel, Size: st.Size(), MTime: st.ModTime().Unix()})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, failures, nil
}

// ListFiles returns only the accepted relative paths.
func ListFiles(root string, opts Options) ([]string, error) {
	cands, _, err := Scan(root, opts)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Rel)
	}
	return out, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isDefaultSkippedDir(name string) bool {
	switch name {
	case ".git", "node_modules", "dist", "target", "vendor":
		return true
	default:
		return false
	}
}

func anyGlobMatch(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matchesGlob(pat, rel) {
			return true
		}
	}
	return false
}

func matchesGlob(pattern string, rel string) bool {
	pat := strings.TrimSpace(pattern)
	if pat == "" {
		return false
	}
	pat = strings.ReplaceAll(pat, "\\", "/")
	rel = filepath.ToSlash(rel)

	// Support csv passed via -x "*.js,*.sql" when not using StringSliceVar.
	if strings.Contains(pat, ",") {
		for _, piece := range strings.Split(pat, ",") {
			if matchesGlob(strings.TrimSpace(piece), rel) {
				return true
			}
		}
		return false
	}

	// Treat patterns without path separators as basename patterns.
	if !strings.Contains(pat, "/") {
		ok, _ := path.Match(pat, path.Base(rel))
		return ok
	}

	ok, _ := path.Match(pat, rel)
	return ok
}

// IsBinary reports whether content looks binary (NUL byte heuristic).
func IsBinary(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return true
		}
	}
	return false
}
