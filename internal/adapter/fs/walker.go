package fs

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Resolver expands configured document sources into concrete paths.
// Sources may be literal paths or doublestar globs.
type Resolver struct {
	excludes []string
}

func NewResolver(excludes []string) *Resolver {
	return &Resolver{excludes: excludes}
}

// Resolve returns the paths named by sources in configured order with
// duplicates removed. Glob matches are sorted; a literal path is returned
// even when it does not exist so the caller can report it. Unmatched
// globs contribute nothing.
func (r *Resolver) Resolve(sources []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	add := func(p string) {
		p = filepath.Clean(p)
		if seen[p] || r.shouldExclude(p) {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	for _, src := range sources {
		if !hasMeta(src) {
			add(src)
			continue
		}

		matches, err := doublestar.FilepathGlob(src)
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		for _, m := range matches {
			if Exists(m) {
				add(m)
			}
		}
	}

	return out, nil
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func (r *Resolver) shouldExclude(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range r.excludes {
		matched, err := doublestar.Match(pattern, slashed)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
