// Package matching evaluates mapping request matchers against captured
// requests.
//
// Every criterion that holds adds to a score; more specific matchers score
// higher so the router can prefer them:
//
//   - Path: exact, wildcard, named parameters, regex patterns
//   - Method: case-insensitive verb comparison
//   - Headers and cookies: case-insensitive names, exact or wildcard values
//   - Query parameters: key-value verification
//   - Body: raw byte equality, contains, regex and JSONPath conditions
//   - Condition: expr-lang boolean expressions over the request
//
// A failed required criterion rejects the mapping outright. When a matcher is
// marked partial, header, cookie, query and body criteria stop being
// required and only contribute to the score. Score constants live in
// scores.go.
package matching
