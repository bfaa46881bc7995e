package mapping

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Origin records how a mapping came into existence.
type Origin string

const (
	// OriginStatic marks mappings loaded from configuration or the admin API.
	OriginStatic Origin = "static"
	// OriginRecorded marks mappings synthesized from proxied traffic.
	OriginRecorded Origin = "recorded"
)

// ActionKind identifies which action variant a mapping carries.
type ActionKind string

const (
	ActionRespond ActionKind = "respond"
	ActionProxy   ActionKind = "proxy"
	ActionNone    ActionKind = ""
)

// Mapping is a rule pairing a request matcher with either a canned response
// or a proxy directive. Exactly one of Response and Proxy is set.
type Mapping struct {
	// ID is a unique identifier (UUID).
	ID string `json:"id" yaml:"id"`

	// Name is an optional human-readable label.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Request is the predicate an inbound request must satisfy.
	Request RequestMatcher `json:"request" yaml:"request"`

	// Response answers the request locally.
	Response *ResponseTemplate `json:"response,omitempty" yaml:"response,omitempty"`

	// Proxy forwards the request to an upstream.
	Proxy *ProxyAction `json:"proxy,omitempty" yaml:"proxy,omitempty"`

	// Priority orders mappings within a tier; higher wins before score.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// ControlPlane marks administratively managed mappings. The recorder
	// never overwrites, removes or shadows them.
	ControlPlane bool `json:"controlPlane,omitempty" yaml:"controlPlane,omitempty"`

	// Origin is static or recorded.
	Origin Origin `json:"origin,omitempty" yaml:"origin,omitempty"`

	// CreatedAt is when the mapping was created.
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`

	// Seq is the registration order assigned by the Store.
	Seq uint64 `json:"-" yaml:"-"`
}

// RequestMatcher is a predicate over method, path, query, headers, cookies
// and body. All populated criteria must hold unless Partial is set.
type RequestMatcher struct {
	Method      string            `json:"method,omitempty" yaml:"method,omitempty"`
	Path        string            `json:"path,omitempty" yaml:"path,omitempty"`
	PathPattern string            `json:"pathPattern,omitempty" yaml:"pathPattern,omitempty"`
	Query       map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Headers     []ValueMatcher    `json:"headers,omitempty" yaml:"headers,omitempty"`
	Cookies     []ValueMatcher    `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	Body        *BodyMatcher      `json:"body,omitempty" yaml:"body,omitempty"`

	// Condition is an expr-lang boolean expression evaluated against the
	// request (see internal/matching).
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Partial makes header, cookie, query and body criteria contribute to
	// the score without being required. Method and path stay mandatory.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`
}

// ValueMatcher matches a named header or cookie. Names compare
// case-insensitively. Pattern is an exact value or a simple wildcard
// (prefix*, *suffix, *contains*) unless Exact is set.
type ValueMatcher struct {
	Name       string `json:"name" yaml:"name"`
	Pattern    string `json:"pattern" yaml:"pattern"`
	IgnoreCase bool   `json:"ignoreCase,omitempty" yaml:"ignoreCase,omitempty"`
	Exact      bool   `json:"exact,omitempty" yaml:"exact,omitempty"`
}

// BodyMatcher holds body criteria; populated fields are combined with AND.
type BodyMatcher struct {
	Equals   Payload        `json:"equals,omitempty" yaml:"equals,omitempty"`
	Contains string         `json:"contains,omitempty" yaml:"contains,omitempty"`
	Pattern  string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	JSONPath map[string]any `json:"jsonPath,omitempty" yaml:"jsonPath,omitempty"`
}

// IsEmpty reports whether no body criteria are set.
func (b *BodyMatcher) IsEmpty() bool {
	return b == nil || (len(b.Equals) == 0 && b.Contains == "" && b.Pattern == "" && len(b.JSONPath) == 0)
}

// ResponseTemplate is a canned response.
type ResponseTemplate struct {
	Status  int         `json:"status" yaml:"status"`
	Headers http.Header `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    Payload     `json:"body,omitempty" yaml:"body,omitempty"`
}

// ProxyAction forwards matching requests to URL.
type ProxyAction struct {
	URL string `json:"url" yaml:"url"`
}

// Kind returns which action variant m carries.
func (m *Mapping) Kind() ActionKind {
	switch {
	case m.Response != nil:
		return ActionRespond
	case m.Proxy != nil:
		return ActionProxy
	default:
		return ActionNone
	}
}

// ValidationError represents a validation failure with context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// Validate checks the structural invariants of a mapping. Pattern
// compilation is checked separately by matching.Validate.
func (m *Mapping) Validate() error {
	if m == nil {
		return &ValidationError{Field: "mapping", Message: "mapping is nil"}
	}
	if m.Response != nil && m.Proxy != nil {
		return &ValidationError{Field: "action", Message: "response and proxy are mutually exclusive"}
	}
	if m.Response == nil && m.Proxy == nil {
		return &ValidationError{Field: "action", Message: "either response or proxy is required"}
	}
	if m.Proxy != nil && strings.TrimSpace(m.Proxy.URL) == "" {
		return &ValidationError{Field: "proxy.url", Message: "proxy url is required"}
	}
	if m.Response != nil && (m.Response.Status < 100 || m.Response.Status > 999) {
		return &ValidationError{Field: "response.status", Message: fmt.Sprintf("invalid status code %d", m.Response.Status)}
	}
	if m.Request.Path != "" && m.Request.PathPattern != "" {
		return &ValidationError{Field: "request.path", Message: "path and pathPattern are mutually exclusive"}
	}
	for i, h := range m.Request.Headers {
		if h.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("request.headers[%d].name", i), Message: "name is required"}
		}
	}
	for i, c := range m.Request.Cookies {
		if c.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("request.cookies[%d].name", i), Message: "name is required"}
		}
	}
	switch m.Origin {
	case "", OriginStatic, OriginRecorded:
	default:
		return &ValidationError{Field: "origin", Message: fmt.Sprintf("unknown origin %q", m.Origin)}
	}
	return nil
}

// Clone returns a deep copy of m.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	c := *m
	c.Request = m.Request.clone()
	if m.Response != nil {
		r := *m.Response
		r.Headers = m.Response.Headers.Clone()
		r.Body = bytes.Clone(m.Response.Body)
		c.Response = &r
	}
	if m.Proxy != nil {
		p := *m.Proxy
		c.Proxy = &p
	}
	return &c
}

func (r RequestMatcher) clone() RequestMatcher {
	c := r
	if r.Query != nil {
		c.Query = make(map[string]string, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = v
		}
	}
	if r.Headers != nil {
		c.Headers = append([]ValueMatcher(nil), r.Headers...)
	}
	if r.Cookies != nil {
		c.Cookies = append([]ValueMatcher(nil), r.Cookies...)
	}
	if r.Body != nil {
		b := *r.Body
		b.Equals = bytes.Clone(r.Body.Equals)
		if r.Body.JSONPath != nil {
			b.JSONPath = make(map[string]any, len(r.Body.JSONPath))
			for k, v := range r.Body.JSONPath {
				b.JSONPath[k] = v
			}
		}
		c.Body = &b
	}
	return c
}
