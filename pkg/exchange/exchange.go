// Package exchange holds the captured form of an inbound HTTP request and of
// the response sent back for it. Bodies are raw bytes and are never passed
// through a text codec.
package exchange

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// DefaultMaxBodySize is the default maximum body size to capture (10MB).
const DefaultMaxBodySize = 10 * 1024 * 1024

// ErrBodyTooLarge is returned (wrapped with the configured limit) by Capture
// when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Request is a fully buffered inbound request.
type Request struct {
	Method     string
	Path       string
	RawPath    string
	RawQuery   string
	Host       string
	Scheme     string
	RemoteAddr string
	Header     http.Header
	Body       []byte
}

// Response is a fully buffered response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Capture buffers r into a Request, reading at most maxBody bytes of body
// (DefaultMaxBodySize when maxBody <= 0).
func Capture(r *http.Request, maxBody int64) (*Request, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if int64(len(body)) > maxBody {
			return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, maxBody)
		}
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		RawPath:    r.URL.EscapedPath(),
		RawQuery:   r.URL.RawQuery,
		Host:       r.Host,
		Scheme:     scheme,
		RemoteAddr: r.RemoteAddr,
		Header:     r.Header.Clone(),
		Body:       body,
	}, nil
}

// RequestURI returns the escaped path and raw query as sent on the wire.
func (r *Request) RequestURI() string {
	p := r.RawPath
	if p == "" {
		p = (&url.URL{Path: r.Path}).EscapedPath()
	}
	if p == "" {
		p = "/"
	}
	if r.RawQuery != "" {
		p += "?" + r.RawQuery
	}
	return p
}

// Query parses the raw query string. Malformed pairs are skipped.
func (r *Request) Query() url.Values {
	v, _ := url.ParseQuery(r.RawQuery)
	return v
}

// Cookies splits every Cookie header in wire order. Values are kept as sent,
// quotes and non-ASCII bytes included; pairs without a name are skipped.
func (r *Request) Cookies() []*http.Cookie {
	var out []*http.Cookie
	for _, line := range r.Header.Values("Cookie") {
		out = append(out, SplitCookies(line)...)
	}
	return out
}

// SplitCookies splits one Cookie header value on ';'. Unlike net/http it
// does not validate values, so nothing the client sent is lost.
func SplitCookies(line string) []*http.Cookie {
	var out []*http.Cookie
	for _, part := range strings.Split(line, ";") {
		name, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: strings.TrimSpace(value)})
	}
	return out
}

// CookieName returns the trimmed name of one raw "name=value" cookie pair.
func CookieName(pair string) string {
	name, _, _ := strings.Cut(pair, "=")
	return strings.TrimSpace(name)
}

// Origin returns scheme://host of the mock server as seen by the client.
func (r *Request) Origin() string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = r.Header.Clone()
	c.Body = bytes.Clone(r.Body)
	return &c
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = r.Header.Clone()
	c.Body = bytes.Clone(r.Body)
	return &c
}

// HeaderField is one name/value pair of an ordered header list.
type HeaderField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OrderedHeaders flattens h into a list sorted by canonical name with the
// value order of each name preserved.
func OrderedHeaders(h http.Header) []HeaderField {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]HeaderField, 0, len(h))
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, HeaderField{Name: name, Value: v})
		}
	}
	return out
}
