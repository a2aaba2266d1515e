// Package globmatch matches a basename against one path segment of a
// glob pattern.
package globmatch

import "path/filepath"

// Match reports whether basename matches any of the given glob pieces.
// Each piece is a single-path-segment pattern in path/filepath.Match
// syntax (it must not contain a path separator). A basename matches if
// it matches at least one piece — this is how a single glob segment can
// be compiled from multiple alternative patterns (e.g. GlobFile
// built from a brace-expanded pattern like "*.go|*.txt").
func Match(pieces []string, basename string) bool {
	for _, p := range pieces {
		ok, err := filepath.Match(p, basename)
		if err == nil && ok {
			return true
		}
	}
	return false
}
