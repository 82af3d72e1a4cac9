package common

import (
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreChecker matches paths against gitignore style patterns.
type IgnoreChecker interface {
	MatchesPath(path string) bool
}

type noIgnore struct{}

func (noIgnore) MatchesPath(string) bool { return false }

// CompileIgnore compiles patterns into a checker. An empty list ignores nothing.
func CompileIgnore(patterns []string) IgnoreChecker {
	if len(patterns) == 0 {
		return noIgnore{}
	}
	return ignore.CompileIgnoreLines(patterns...)
}

// Ignored reports whether rel, a slash or OS separated relative path, is excluded.
func Ignored(ic IgnoreChecker, rel string) bool {
	return ic.MatchesPath(filepath.ToSlash(rel))
}
