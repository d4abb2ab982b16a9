package path

import "strings"

// Path represents a hierarchical event path using dot notation.
// Examples: "calendar.date.today", "order.created", "perm.on.calendar.date.*"
type Path string

const (
	// Wildcard matches exactly one segment in a pattern position. The
	// whole-path pattern "*" is special-cased by channels as an any-event
	// listener and is not subject to single-segment semantics.
	Wildcard = "*"

	// Separator is the character used to separate path segments.
	Separator = "."

	// PermNamespace is the reserved top-level segment under which
	// permission markers live. Real events never start with it.
	PermNamespace = "perm"
)

// String returns the path as a string.
func (p Path) String() string {
	return string(p)
}

// Segments returns the path split by the separator.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), Separator)
}

// SegmentCount returns the number of segments in the path.
func (p Path) SegmentCount() int {
	if p == "" {
		return 0
	}
	return strings.Count(string(p), Separator) + 1
}

// HasPrefix returns true if the path starts with the given prefix on a
// whole-segment boundary.
func (p Path) HasPrefix(prefix Path) bool {
	if prefix == "" {
		return true
	}
	s := string(p)
	pre := string(prefix)
	if !strings.HasPrefix(s, pre) {
		return false
	}
	if len(s) == len(pre) {
		return true
	}
	return s[len(pre)] == '.'
}

// IsWildcard returns true if the path contains a wildcard segment.
func (p Path) IsWildcard() bool {
	for _, seg := range p.Segments() {
		if seg == Wildcard {
			return true
		}
	}
	return false
}

// IsAny returns true if the path is the whole-path any-event pattern "*".
func (p Path) IsAny() bool {
	return string(p) == Wildcard
}

// IsValid returns true if the path is valid.
// A valid path:
//   - Is not empty
//   - Does not start or end with a separator
//   - Does not contain consecutive separators or empty segments
//   - Does not contain whitespace
func (p Path) IsValid() bool {
	s := string(p)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, Separator) || strings.HasSuffix(s, Separator) {
		return false
	}
	if strings.Contains(s, Separator+Separator) {
		return false
	}
	return !strings.ContainsAny(s, " \t\n")
}

// IsReserved returns true if the path falls under the permission-marker
// namespace.
func (p Path) IsReserved() bool {
	return p.HasPrefix(PermNamespace)
}

// Matches returns true if this path matches the given pattern. The pattern
// may contain "*" segments, each matching exactly one path segment.
func (p Path) Matches(pattern Path) bool {
	return matchSegments(p.Segments(), pattern.Segments())
}

// matchSegments performs segment-wise pattern matching.
func matchSegments(path, pattern []string) bool {
	if len(path) != len(pattern) {
		return false
	}
	for i, seg := range pattern {
		if seg == Wildcard {
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

// Join joins multiple segments into a path.
func Join(segments ...string) Path {
	return Path(strings.Join(segments, Separator))
}

// Split splits a path string into segments without creating a Path first.
func Split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, Separator)
}
