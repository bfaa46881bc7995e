package requestlog

import (
	"slices"
	"strings"
	"time"

	"github.com/getmockd/mockrelay/pkg/exchange"
	"github.com/getmockd/mockrelay/pkg/mapping"
)

// Entry captures one handled request and the response sent for it.
// An Entry is immutable once it has been logged.
type Entry struct {
	// Seq is the 1-based position of the entry in the log.
	Seq int64 `json:"seq"`

	// ID is a unique identifier for the log entry.
	ID string `json:"id"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`

	// DurationMs is the request processing time in milliseconds.
	DurationMs int64 `json:"durationMs"`

	// RemoteAddr is the client address.
	RemoteAddr string `json:"remoteAddr,omitempty"`

	Request  RequestRecord  `json:"request"`
	Response ResponseRecord `json:"response"`

	// MappingID is the ID of the mapping that matched (empty if none).
	MappingID string `json:"mappingId,omitempty"`

	// Route is the routing decision: respond, proxy or none.
	Route string `json:"route"`

	// Proxied reports whether an upstream was contacted.
	Proxied bool `json:"proxied"`

	// Upstream is the full URL the request was forwarded to.
	Upstream string `json:"upstream,omitempty"`

	// RecordedMappingID is the ID of the mapping synthesized from this exchange.
	RecordedMappingID string `json:"recordedMappingId,omitempty"`

	// Error contains the forwarding or recording failure, if any.
	Error string `json:"error,omitempty"`
}

// RequestRecord is the inbound side of an exchange.
type RequestRecord struct {
	Method   string                 `json:"method"`
	Path     string                 `json:"path"`
	RawQuery string                 `json:"rawQuery,omitempty"`
	Headers  []exchange.HeaderField `json:"headers,omitempty"`
	Cookies  []Cookie               `json:"cookies,omitempty"`
	Body     mapping.Payload        `json:"body,omitempty"`
	BodyKind exchange.BodyKind      `json:"bodyKind"`
}

// ResponseRecord is the response delivered to the client.
type ResponseRecord struct {
	Status   int                    `json:"status"`
	Headers  []exchange.HeaderField `json:"headers,omitempty"`
	Body     mapping.Payload        `json:"body,omitempty"`
	BodyKind exchange.BodyKind      `json:"bodyKind"`
}

// Cookie is a request cookie name/value pair.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewEntry builds an entry from a captured request and, when non-nil, the
// response that was sent for it. Inputs are copied.
func NewEntry(req *exchange.Request, resp *exchange.Response) *Entry {
	e := &Entry{Timestamp: time.Now()}
	if req != nil {
		e.RemoteAddr = req.RemoteAddr
		e.Request = RequestRecord{
			Method:   req.Method,
			Path:     req.Path,
			RawQuery: req.RawQuery,
			Headers:  exchange.OrderedHeaders(req.Header),
			Body:     slices.Clone(req.Body),
			BodyKind: exchange.Classify(req.Header.Get("Content-Type"), req.Body),
		}
		for _, c := range req.Cookies() {
			e.Request.Cookies = append(e.Request.Cookies, Cookie{Name: c.Name, Value: c.Value})
		}
	}
	if resp != nil {
		e.SetResponse(resp)
	}
	return e
}

// SetResponse replaces the response side of e with a copy of resp.
func (e *Entry) SetResponse(resp *exchange.Response) {
	e.Response = ResponseRecord{
		Status:   resp.StatusCode,
		Headers:  exchange.OrderedHeaders(resp.Header),
		Body:     slices.Clone(resp.Body),
		BodyKind: exchange.Classify(resp.Header.Get("Content-Type"), resp.Body),
	}
}

// Header returns the first request header value for name (case-insensitive).
func (r RequestRecord) Header(name string) string {
	return headerValue(r.Headers, name)
}

// Header returns the first response header value for name (case-insensitive).
func (r ResponseRecord) Header(name string) string {
	return headerValue(r.Headers, name)
}

func headerValue(fields []exchange.HeaderField, name string) string {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Request.Headers = slices.Clone(e.Request.Headers)
	c.Request.Cookies = slices.Clone(e.Request.Cookies)
	c.Request.Body = slices.Clone(e.Request.Body)
	c.Response.Headers = slices.Clone(e.Response.Headers)
	c.Response.Body = slices.Clone(e.Response.Body)
	return &c
}
