package matching

import (
	"net/http"
	"strings"

	"github.com/getmockd/mockrelay/pkg/mapping"
)

// MatchValue compares an actual value with a pattern. Patterns without '*'
// require equality; otherwise prefix*, *suffix, *contains* and general
// wildcards are supported.
func MatchValue(pattern, actual string, ignoreCase bool) bool {
	if ignoreCase {
		pattern = strings.ToLower(pattern)
		actual = strings.ToLower(actual)
	}
	if !strings.Contains(pattern, "*") {
		return actual == pattern
	}
	if pattern == "*" {
		return true
	}
	return matchWildcard(pattern, actual)
}

// MatchHeader checks a header matcher against all values of that header.
// Header names are case-insensitive (per HTTP spec).
func MatchHeader(m mapping.ValueMatcher, headers http.Header) bool {
	for name, values := range headers {
		if !strings.EqualFold(name, m.Name) {
			continue
		}
		for _, v := range values {
			if matchValue(m, v) {
				return true
			}
		}
	}
	return false
}

// MatchCookie checks a cookie matcher. Cookie names are compared
// case-insensitively.
func MatchCookie(m mapping.ValueMatcher, cookies []*http.Cookie) bool {
	for _, c := range cookies {
		if strings.EqualFold(c.Name, m.Name) && matchValue(m, c.Value) {
			return true
		}
	}
	return false
}

func matchValue(m mapping.ValueMatcher, actual string) bool {
	if m.Exact {
		if m.IgnoreCase {
			return strings.EqualFold(m.Pattern, actual)
		}
		return m.Pattern == actual
	}
	return MatchValue(m.Pattern, actual, m.IgnoreCase)
}
