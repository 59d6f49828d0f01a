package utils

import (
	"path/filepath"
	"regexp"
)

// pattern matches either as a glob against the base name or, when the
// pattern compiles, as a regex against the full path.
type pattern struct {
	glob string
	re   *regexp.Regexp
}

func compilePatterns(raw []string) []pattern {
	compiled := make([]pattern, 0, len(raw))
	for _, p := range raw {
		if p == "" {
			continue
		}
		entry := pattern{glob: p}
		if re, err := regexp.Compile(p); err == nil {
			entry.re = re
		}
		compiled = append(compiled, entry)
	}
	return compiled
}

type PatternMatcher struct {
	includes []pattern
	excludes []pattern
}

func NewPatternMatcher(includePatterns, excludePatterns []string) *PatternMatcher {
	return &PatternMatcher{
		includes: compilePatterns(includePatterns),
		excludes: compilePatterns(excludePatterns),
	}
}

// ShouldInclude reports whether a path passes the include/exclude rules.
// An empty include list admits everything; excludes always win.
func (m *PatternMatcher) ShouldInclude(path string) bool {
	if m == nil {
		return true
	}
	if len(m.includes) > 0 && !matchesAny(path, m.includes) {
		return false
	}
	if matchesAny(path, m.excludes) {
		return false
	}
	return true
}

func matchesAny(path string, patterns []pattern) bool {
	base := filepath.Base(path)
	for _, p := range patterns {
		if matched, _ := filepath.Match(p.glob, base); matched {
			return true
		}
		if p.re != nil && p.re.MatchString(path) {
			return true
		}
	}
	return false
}
