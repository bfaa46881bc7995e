package matching

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ohler55/ojg/jp"
)

// MatchJSONPath evaluates JSONPath conditions against a JSON body.
// Returns ScoreJSONPathCondition per condition, or 0 if the body is not JSON
// or any condition fails.
//
// A condition value of {"exists": true|false} checks presence only.
func MatchJSONPath(conditions map[string]any, body []byte) int {
	if len(conditions) == 0 {
		return 0
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return 0
	}

	score := 0
	for path, expected := range conditions {
		if !matchSingleJSONPath(path, expected, data) {
			return 0
		}
		score += ScoreJSONPathCondition
	}
	return score
}

func matchSingleJSONPath(path string, expected, data any) bool {
	expr, err := jp.ParseString(path)
	if err != nil {
		return false
	}
	results := expr.Get(data)

	if exists, ok := existenceCheck(expected); ok {
		return exists == (len(results) > 0)
	}

	for _, r := range results {
		if valuesEqual(r, expected) {
			return true
		}
	}
	return false
}

// existenceCheck reports whether expected is {"exists": bool} and its value.
func existenceCheck(expected any) (exists, ok bool) {
	m, isMap := expected.(map[string]any)
	if !isMap || len(m) != 1 {
		return false, false
	}
	b, isBool := m["exists"].(bool)
	return b, isBool
}

// valuesEqual compares JSON values, coercing numbers to float64 since
// decoded JSON numbers are float64 and YAML-loaded expectations are ints.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	a, aNum := toFloat64(actual)
	e, eNum := toFloat64(expected)
	return aNum && eNum && a == e
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

// ValidateJSONPathExpression validates a JSONPath expression at load time.
func ValidateJSONPathExpression(path string) error {
	if _, err := jp.ParseString(path); err != nil {
		return fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
	}
	return nil
}
