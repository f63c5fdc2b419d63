package cache

import "strings"

// matcher reports whether a key is covered by an invalidation pattern.
type matcher func(key string) bool

// compilePattern turns an invalidation pattern into a matcher.
//
// A pattern containing '*' must match the whole key, with every '*' standing for any
// (possibly empty) substring and every other byte taken literally. A pattern without
// '*' is a prefix: "tasks" matches "tasks:1" and "tasks-archive".
// Matching is byte-wise, so keys and patterns need not be valid UTF-8.
func compilePattern(pattern string) matcher {
	if !strings.Contains(pattern, "*") {
		return func(key string) bool {
			return strings.HasPrefix(key, pattern)
		}
	}

	parts := strings.Split(pattern, "*")
	first, last := parts[0], parts[len(parts)-1]
	middle := parts[1 : len(parts)-1]
	minLen := len(first) + len(last)

	return func(key string) bool {
		if len(key) < minLen || !strings.HasPrefix(key, first) || !strings.HasSuffix(key, last) {
			return false
		}
		rest := key[len(first) : len(key)-len(last)]
		for _, seg := range middle {
			i := strings.Index(rest, seg)
			if i < 0 {
				return false
			}
			rest = rest[i+len(seg):]
		}
		return true
	}
}

// MatchPattern reports whether key is matched by pattern under Invalidate semantics.
func MatchPattern(pattern, key string) bool {
	return compilePattern(pattern)(key)
}
