package matching

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/getmockd/mockrelay/pkg/exchange"
	"github.com/getmockd/mockrelay/pkg/mapping"
)

// Result is the outcome of evaluating one matcher.
type Result struct {
	Matched bool
	Score   int
}

// Match evaluates m against req.
//
// Method, path and condition are always required. Query, header, cookie and
// body criteria are required unless m.Partial is set, in which case they
// only add to the score.
func Match(m *mapping.RequestMatcher, req *exchange.Request) Result {
	if m == nil || req == nil {
		return Result{}
	}
	if m.Path != "" && m.PathPattern != "" {
		return Result{}
	}

	score := 0

	if m.Method != "" {
		if !strings.EqualFold(m.Method, req.Method) {
			return Result{}
		}
		score += ScoreMethod
	}

	if m.Path != "" {
		s := MatchPath(m.Path, req.Path)
		if s == 0 {
			return Result{}
		}
		score += s
	}

	if m.PathPattern != "" {
		s := MatchPathPattern(m.PathPattern, req.Path)
		if s == 0 {
			return Result{}
		}
		score += s
	}

	if m.Condition != "" {
		if !MatchCondition(m.Condition, req) {
			return Result{}
		}
		score += ScoreCondition
	}

	optional := func(ok bool, s int) bool {
		if ok {
			score += s
			return true
		}
		return m.Partial
	}

	if len(m.Query) > 0 {
		params := req.Query()
		for name, value := range m.Query {
			if !optional(params.Get(name) == value, ScoreQueryParam) {
				return Result{}
			}
		}
	}

	for _, h := range m.Headers {
		if !optional(MatchHeader(h, req.Header), ScoreHeader) {
			return Result{}
		}
	}

	if len(m.Cookies) > 0 {
		cookies := req.Cookies()
		for _, c := range m.Cookies {
			if !optional(MatchCookie(c, cookies), ScoreCookie) {
				return Result{}
			}
		}
	}

	if !m.Body.IsEmpty() {
		s, all := MatchBody(m.Body, req.Body)
		score += s
		if !all && !m.Partial {
			return Result{}
		}
	}

	return Result{Matched: true, Score: score}
}

// Validate checks that every pattern in m compiles.
func Validate(m *mapping.RequestMatcher) error {
	if m.PathPattern != "" {
		if _, err := regexp.Compile(m.PathPattern); err != nil {
			return &mapping.ValidationError{Field: "request.pathPattern", Message: err.Error()}
		}
	}
	if m.Body != nil {
		if m.Body.Pattern != "" {
			if _, err := regexp.Compile(m.Body.Pattern); err != nil {
				return &mapping.ValidationError{Field: "request.body.pattern", Message: err.Error()}
			}
		}
		for path := range m.Body.JSONPath {
			if err := ValidateJSONPathExpression(path); err != nil {
				return &mapping.ValidationError{Field: fmt.Sprintf("request.body.jsonPath[%s]", path), Message: err.Error()}
			}
		}
	}
	if m.Condition != "" {
		if err := ValidateCondition(m.Condition); err != nil {
			return &mapping.ValidationError{Field: "request.condition", Message: err.Error()}
		}
	}
	return nil
}
