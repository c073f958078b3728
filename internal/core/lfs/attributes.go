package lfs

import (
	"bufio"
	"bytes"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Attributes holds the .gitattributes patterns routed through the lfs filter.
type Attributes struct {
	patterns []string
}

// ParseAttributes reads .gitattributes content. Later lines that unset the
// filter (-filter or filter=<other>) remove earlier matches for the same pattern.
func ParseAttributes(data []byte) Attributes {
	var patterns []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		pattern, attrs := fields[0], fields[1:]

		lfs, set := false, false
		for _, a := range attrs {
			switch {
			case a == "filter=lfs":
				lfs, set = true, true
			case a == "-filter" || a == "!filter" || strings.HasPrefix(a, "filter="):
				lfs, set = false, true
			}
		}
		if !set {
			continue
		}

		patterns = removePattern(patterns, pattern)
		if lfs && doublestar.ValidatePattern(normalize(pattern)) {
			patterns = append(patterns, pattern)
		}
	}
	return Attributes{patterns: patterns}
}

func removePattern(patterns []string, p string) []string {
	out := patterns[:0]
	for _, existing := range patterns {
		if existing != p {
			out = append(out, existing)
		}
	}
	return out
}

// normalize converts a gitattributes pattern to a doublestar pattern matched
// against the slash separated repository path.
func normalize(pattern string) string {
	if strings.HasPrefix(pattern, "/") {
		return strings.TrimPrefix(pattern, "/")
	}
	if !strings.Contains(pattern, "/") {
		return "**/" + pattern
	}
	return pattern
}

// Empty reports whether no pattern uses the lfs filter.
func (a Attributes) Empty() bool { return len(a.patterns) == 0 }

// Match reports whether p is tracked by lfs.
func (a Attributes) Match(p string) bool {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	for _, pattern := range a.patterns {
		if ok, err := doublestar.Match(normalize(pattern), p); err == nil && ok {
			return true
		}
	}
	return false
}
