package admin

import (
	"strconv"
	"strings"
)

// parsePositiveInt returns a parsed int only when the value is a valid positive integer.
func parsePositiveInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseNonNegativeInt returns a parsed int only when the value is a valid non-negative integer.
func parseNonNegativeInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseBool returns a pointer to the parsed value, or nil when v is empty or
// not a boolean.
func parseBool(v string) *bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if v == "" || err != nil {
		return nil
	}
	return &b
}
