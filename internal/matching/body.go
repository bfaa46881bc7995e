package matching

import (
	"bytes"

	"github.com/getmockd/mockrelay/pkg/mapping"
)

// MatchBody evaluates all populated body criteria. It returns the summed
// score of the criteria that held and whether every criterion held.
func MatchBody(m *mapping.BodyMatcher, body []byte) (score int, all bool) {
	if m.IsEmpty() {
		return 0, true
	}
	all = true

	if len(m.Equals) > 0 {
		if bytes.Equal(body, m.Equals) {
			score += ScoreBodyEquals
		} else {
			all = false
		}
	}

	if m.Contains != "" {
		if bytes.Contains(body, []byte(m.Contains)) {
			score += ScoreBodyContains
		} else {
			all = false
		}
	}

	if m.Pattern != "" {
		if s := MatchBodyPattern(m.Pattern, body); s > 0 {
			score += s
		} else {
			all = false
		}
	}

	if len(m.JSONPath) > 0 {
		if s := MatchJSONPath(m.JSONPath, body); s > 0 {
			score += s
		} else {
			all = false
		}
	}

	return score, all
}

// MatchBodyPattern checks if the body matches an RE2 pattern.
func MatchBodyPattern(pattern string, body []byte) int {
	re, err := compileCached(pattern)
	if err != nil {
		return 0
	}
	if re.Match(body) {
		return ScoreBodyPattern
	}
	return 0
}
