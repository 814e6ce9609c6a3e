// Package glob compiles cache key patterns into reusable matchers.
//
// The only special character is '*', which matches any run of characters
// (including the empty run). Everything else matches itself literally, so
// keys containing '.', '+', '(' or other regular-expression metacharacters
// need no escaping. Patterns are anchored at both ends.
package glob

import "strings"

// Matcher is a compiled pattern. The zero value matches only the empty string.
type Matcher struct {
	pattern string
	// segments are the literal runs between wildcards.
	segments []string
	// anchoredStart and anchoredEnd report whether the pattern begins or
	// ends with a literal rather than a wildcard.
	anchoredStart bool
	anchoredEnd   bool
	wildcard      bool
}

// Compile compiles pattern into a Matcher. Compile never fails.
func Compile(pattern string) *Matcher {
	m := &Matcher{pattern: pattern}
	if !strings.Contains(pattern, "*") {
		m.segments = []string{pattern}
		m.anchoredStart = true
		m.anchoredEnd = true
		return m
	}

	m.wildcard = true
	m.anchoredStart = !strings.HasPrefix(pattern, "*")
	m.anchoredEnd = !strings.HasSuffix(pattern, "*")
	for _, seg := range strings.Split(pattern, "*") {
		// Consecutive wildcards collapse into one.
		if seg != "" {
			m.segments = append(m.segments, seg)
		}
	}
	return m
}

// String returns the source pattern.
func (m *Matcher) String() string {
	return m.pattern
}

// Literal reports whether the pattern contains no wildcard.
func (m *Matcher) Literal() bool {
	return !m.wildcard
}

// Prefix returns the literal text every match must start with.
func (m *Matcher) Prefix() string {
	if !m.anchoredStart || len(m.segments) == 0 {
		return ""
	}
	return m.segments[0]
}

// Match reports whether s matches the whole pattern.
func (m *Matcher) Match(s string) bool {
	if !m.wildcard {
		return s == m.pattern
	}

	segs := m.segments
	if len(segs) == 0 {
		return true // pattern is only wildcards
	}

	if m.anchoredStart {
		if !strings.HasPrefix(s, segs[0]) {
			return false
		}
		s = s[len(segs[0]):]
		segs = segs[1:]
	}

	var last string
	if m.anchoredEnd {
		if len(segs) == 0 {
			return true
		}
		last = segs[len(segs)-1]
		segs = segs[:len(segs)-1]
	}

	// Greedy leftmost placement of the middle segments is optimal: placing a
	// segment as early as possible never removes a match for later segments.
	for _, seg := range segs {
		i := strings.Index(s, seg)
		if i < 0 {
			return false
		}
		s = s[i+len(seg):]
	}

	if m.anchoredEnd {
		return strings.HasSuffix(s, last)
	}
	return true
}
