package matching

import (
	"regexp"
	"strings"
	"sync"
)

// MatchPath checks if the request path matches the pattern.
// Returns a score > 0 if matched, 0 if not matched.
// Supports:
//   - Exact match: "/api/users" matches "/api/users"
//   - Wildcard: "/api/users/*" matches "/api/users/123"
//   - Named params: "/api/users/{id}" matches "/api/users/123"
func MatchPath(pattern, path string) int {
	if pattern == path {
		return ScorePathExact
	}

	if strings.Contains(pattern, "{") && strings.Contains(pattern, "}") {
		if matchNamedParams(pattern, path) {
			return ScorePathNamedParams
		}
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return ScorePathWildcard
		}
	}

	if strings.Contains(pattern, "*") && matchWildcard(pattern, path) {
		return ScorePathWildcard
	}

	return 0
}

func matchNamedParams(pattern, path string) bool {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i, part := range patternParts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			continue
		}
		if part != pathParts[i] {
			return false
		}
	}
	return true
}

// matchWildcard performs simple wildcard matching where * matches any
// sequence of characters. The last literal segment must end the string.
func matchWildcard(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	pos := len(parts[0])

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(s[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}

	return len(s)-pos >= len(last) && strings.HasSuffix(s, last)
}

var regexCache sync.Map // pattern -> *regexp.Regexp

// compileCached compiles pattern once and reuses the result.
func compileCached(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// MatchPathPattern checks if the request path matches an RE2 pattern.
// Invalid patterns never match.
func MatchPathPattern(pattern, path string) int {
	if pattern == "" {
		return 0
	}
	re, err := compileCached(pattern)
	if err != nil {
		return 0
	}
	if re.MatchString(path) {
		return ScorePathPattern
	}
	return 0
}
