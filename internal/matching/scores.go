package matching

// Match score constants for body matching.
// Higher scores indicate more specific/precise matches.
const (
	// ScoreBodyEquals is the score for an exact body match.
	ScoreBodyEquals = 25

	// ScoreBodyPattern is the score for a body regex pattern match.
	ScoreBodyPattern = 22

	// ScoreBodyContains is the score for a body substring match.
	ScoreBodyContains = 20

	// ScoreJSONPathCondition is the score per matched JSONPath condition.
	ScoreJSONPathCondition = 15
)

// Match score constants for path matching.
const (
	ScorePathExact       = 15
	ScorePathPattern     = 14
	ScorePathNamedParams = 12
	ScorePathWildcard    = 10
)

// Match score constants for method, header, cookie, query and condition
// matching.
const (
	ScoreMethod     = 10
	ScoreHeader     = 10
	ScoreCookie     = 10
	ScoreQueryParam = 5
	ScoreCondition  = 15
)
