package recording

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/getmockd/mockrelay/internal/id"
	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/mapping"
	"github.com/getmockd/mockrelay/pkg/proxy"
)

// skipResponseHeaders describe the upstream connection or are recomputed
// when the mapping is served, so they are not part of the replay.
var skipResponseHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Proxy-Connection":  true,
	"Te":                true,
	"Trailer":           true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
}

// ToMapping synthesizes a mapping that replays r.
//
// The matcher requires the method, the exact path, every forwarded query
// parameter not in ExcludedParams, one exact matcher per forwarded header
// (the Cookie header is expressed through cookie matchers instead), one
// exact matcher per forwarded cookie and, when the request had a body, the
// exact body bytes. Excluded headers and cookies never reach the matcher.
func ToMapping(r *Recording, cfg *config.ProxyConfig) *mapping.Mapping {
	req := r.Outbound
	matcher := mapping.RequestMatcher{
		Method:  req.Method,
		Path:    req.Path,
		Partial: cfg != nil && cfg.AllowPartialMapping,
	}

	for name, values := range req.Query() {
		if cfg.ParamExcluded(name) || len(values) == 0 {
			continue
		}
		if matcher.Query == nil {
			matcher.Query = make(map[string]string)
		}
		matcher.Query[name] = values[0]
	}

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.EqualFold(name, "Cookie") || cfg.HeaderExcluded(name) {
			continue
		}
		for _, v := range req.Header[name] {
			matcher.Headers = append(matcher.Headers, mapping.ValueMatcher{Name: name, Pattern: v, Exact: true})
		}
	}

	for _, c := range req.Cookies() {
		if cfg.CookieExcluded(c.Name) {
			continue
		}
		matcher.Cookies = append(matcher.Cookies, mapping.ValueMatcher{Name: c.Name, Pattern: c.Value, Exact: true})
	}

	if len(req.Body) > 0 {
		matcher.Body = &mapping.BodyMatcher{Equals: mapping.Payload(req.Body)}
	}

	return &mapping.Mapping{
		ID:        id.UUID(),
		Name:      req.Method + " " + req.Path,
		Request:   matcher,
		Response:  toResponse(r, cfg),
		Origin:    mapping.OriginRecorded,
		CreatedAt: time.Now(),
	}
}

func toResponse(r *Recording, cfg *config.ProxyConfig) *mapping.ResponseTemplate {
	resp := &mapping.ResponseTemplate{
		Status: r.Response.StatusCode,
		Body:   mapping.Payload(r.Response.Body),
	}
	for name, values := range r.Response.Header {
		if skipResponseHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		if resp.Headers == nil {
			resp.Headers = make(http.Header)
		}
		resp.Headers[name] = append([]string(nil), values...)
	}

	// Replays are served without an upstream, so upstream-origin locations
	// are stored relative to the mock.
	if cfg.ShouldRewriteLocation() && resp.Headers != nil {
		if base, err := url.Parse(r.Upstream); err == nil && base.Host != "" {
			for _, name := range proxy.LocationHeaders {
				if v := resp.Headers.Get(name); v != "" {
					resp.Headers.Set(name, proxy.RelativeLocation(v, base))
				}
			}
		}
	}
	return resp
}

// FileName returns the file name a recorded mapping is written under:
// prefix, method and path with separators replaced, the mapping ID when
// requested, and the format's extension.
func FileName(m *mapping.Mapping, cfg *config.ProxyConfig, format mapping.Format) string {
	var b strings.Builder
	b.WriteString(cfg.MappingFilePrefix())
	b.WriteString(strings.ToUpper(m.Request.Method))
	b.WriteString(sanitizePath(m.Request.Path))
	if cfg != nil && cfg.AppendIDToSavedMappingFile {
		b.WriteString("_")
		b.WriteString(m.ID)
	}
	b.WriteString(format.Extension())
	return b.String()
}

func sanitizePath(p string) string {
	var b strings.Builder
	b.WriteByte('_')
	for _, r := range strings.Trim(p, "/") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.ReplaceAll(b.String(), "..", "_")
	if s == "_" {
		return "_root"
	}
	return s
}

// Sensitive header names worth a warning when they end up in a matcher.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-access-token":      true,
	"api-key":             true,
	"apikey":              true,
	"x-csrf-token":        true,
	"x-xsrf-token":        true,
	"proxy-authorization": true,
}

// Sensitive cookie name fragments.
var sensitiveCookiePatterns = []string{
	"session",
	"token",
	"auth",
	"jwt",
	"sid",
	"csrf",
	"xsrf",
}

// Sensitive query parameter names.
var sensitiveQueryParams = map[string]bool{
	"api_key":      true,
	"apikey":       true,
	"api-key":      true,
	"access_token": true,
	"token":        true,
	"auth":         true,
	"key":          true,
	"secret":       true,
	"password":     true,
	"passwd":       true,
	"pwd":          true,
}

// SensitiveDataWarning flags a matcher that captured a likely secret.
type SensitiveDataWarning struct {
	Type  string `json:"type"` // header, cookie, query
	Field string `json:"field"`
}

// CheckSensitiveData lists the matchers of m that look like credentials.
// Such values end up in memory and in saved files verbatim; the usual fix
// is adding the name to the exclusion lists.
func CheckSensitiveData(m *mapping.Mapping) []SensitiveDataWarning {
	var warnings []SensitiveDataWarning
	for _, h := range m.Request.Headers {
		if sensitiveHeaders[strings.ToLower(h.Name)] {
			warnings = append(warnings, SensitiveDataWarning{Type: "header", Field: h.Name})
		}
	}
	for _, c := range m.Request.Cookies {
		lower := strings.ToLower(c.Name)
		for _, p := range sensitiveCookiePatterns {
			if strings.Contains(lower, p) {
				warnings = append(warnings, SensitiveDataWarning{Type: "cookie", Field: c.Name})
				break
			}
		}
	}
	params := make([]string, 0, len(m.Request.Query))
	for name := range m.Request.Query {
		params = append(params, name)
	}
	sort.Strings(params)
	for _, name := range params {
		if sensitiveQueryParams[strings.ToLower(name)] {
			warnings = append(warnings, SensitiveDataWarning{Type: "query", Field: name})
		}
	}
	return warnings
}
