package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/exchange"
	"github.com/getmockd/mockrelay/pkg/httputil"
)

func inbound(method, uri string, header http.Header) *exchange.Request {
	u, _ := url.Parse(uri)
	if header == nil {
		header = http.Header{}
	}
	return &exchange.Request{
		Method:   method,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
		Host:     "mock.local:8080",
		Header:   header,
	}
}

func TestOutboundHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Authorization", "Bearer x")
	h.Set("X-Trace", "1")
	h.Add("Cookie", "S=1; s=2; G=3")
	cfg := &config.ProxyConfig{ExcludedHeaders: []string{"x-trace"}, ExcludedCookies: []string{"S", "s"}}

	out := OutboundHeaders(inbound("GET", "/", h), cfg)

	assert.Equal(t, "*/*", out.Get("Accept"))
	assert.Equal(t, "Bearer x", out.Get("Authorization"))
	assert.Empty(t, out.Values("X-Trace"))
	assert.Equal(t, "G=3", out.Get("Cookie"))
}

func TestOutboundHeaders_CookieDroppedWhenAllExcluded(t *testing.T) {
	h := http.Header{}
	h.Set("Cookie", "S=1")
	out := OutboundHeaders(inbound("GET", "/", h), &config.ProxyConfig{ExcludedCookies: []string{"s"}})
	_, ok := out["Cookie"]
	assert.False(t, ok)
}

func TestOutboundHeaders_CookiesKeptVerbatim(t *testing.T) {
	tests := []struct {
		name     string
		cookie   string
		excluded []string
		want     string
	}{
		{"no exclusions", `name=välue; pref="a"b; G=z`, nil, `name=välue; pref="a"b; G=z`},
		{"excluded first", `S=1; name=välue; pref="a"b`, []string{"s"}, `name=välue; pref="a"b`},
		{"excluded middle", `name=välue;S=1; G=z`, []string{"S"}, `name=välue; G=z`},
		{"unknown name kept", `flag; G=z`, []string{"x"}, `flag; G=z`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			h.Set("Cookie", tt.cookie)
			out := OutboundHeaders(inbound("GET", "/", h), &config.ProxyConfig{ExcludedCookies: tt.excluded})
			assert.Equal(t, []string{tt.want}, out.Values("Cookie"))
		})
	}
}

func TestForward_NonASCIICookiesReachUpstream(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Cookie")
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Cookie", `name=välue; pref="a"b; G=z`)
	_, err := NewForwarder(Options{}).Forward(context.Background(), inbound("GET", "/", h), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, `name=välue; pref="a"b; G=z`, seen)
}

func TestForward_EmptyBodyKeepsContentType(t *testing.T) {
	var seenType string
	var seenBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenType = r.Header.Get("Content-Type")
		seenBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	_, err := NewForwarder(Options{}).Forward(context.Background(), inbound("POST", "/items", h), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", seenType)
	assert.Empty(t, seenBody)
}

func TestTargetURL(t *testing.T) {
	tests := []struct {
		upstream string
		uri      string
		want     string
		wantErr  bool
	}{
		{"http://u.test", "/a/b?x=1&y=2", "http://u.test/a/b?x=1&y=2", false},
		{"http://u.test/", "/a", "http://u.test/a", false},
		{"https://u.test:8443/base/", "/a?q", "https://u.test:8443/base/a?q", false},
		{"http://u.test", "/a%2Fb", "http://u.test/a%2Fb", false},
		{"u.test", "/a", "", true},
		{"://bad", "/a", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.upstream+tt.uri, func(t *testing.T) {
			got, err := TargetURL(tt.upstream, inbound("GET", tt.uri, nil))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForward_PassesRequestThrough(t *testing.T) {
	var seen *http.Request
	var seenBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		seenBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "created")
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Drop", "1")
	req := inbound("POST", "/items?b=2&a=1", h)
	req.Body = []byte(`{"n":1}`)

	f := NewForwarder(Options{})
	res, err := f.Forward(context.Background(), req, srv.URL, &config.ProxyConfig{ExcludedHeaders: []string{"X-Drop"}})
	require.NoError(t, err)

	assert.Equal(t, "/items", seen.URL.Path)
	assert.Equal(t, "b=2&a=1", seen.URL.RawQuery)
	assert.Equal(t, `{"n":1}`, string(seenBody))
	assert.Empty(t, seen.Header.Get("X-Drop"))
	assert.Empty(t, seen.Header.Values("User-Agent"))

	assert.Equal(t, http.StatusCreated, res.Response.StatusCode)
	assert.Equal(t, "created", string(res.Response.Body))
	assert.Equal(t, "yes", res.Response.Header.Get("X-Upstream"))
	assert.Equal(t, srv.URL+"/items?b=2&a=1", res.URL)
	assert.Empty(t, res.Outbound.Header.Get("X-Drop"))
	assert.Equal(t, "mock.local:8080", req.Host, "inbound request must not change")
}

func TestForward_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	res, err := NewForwarder(Options{}).Forward(context.Background(), inbound("GET", "/start", nil), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, res.Response.StatusCode)
	assert.Equal(t, "/elsewhere", res.Response.Header.Get("Location"))
}

func TestForward_Failures(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	big := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 64))
	}))
	defer big.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name     string
		upstream string
		cfg      *config.ProxyConfig
		code     string
	}{
		{"timeout", slow.URL, &config.ProxyConfig{Timeout: 50 * time.Millisecond}, "upstream_timeout"},
		{"too large", big.URL, &config.ProxyConfig{MaxBodySize: 16}, "upstream_response_too_large"},
		{"refused", closedURL, nil, "upstream_unreachable"},
		{"bad url", "not a url", nil, "upstream_unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewForwarder(Options{}).Forward(context.Background(), inbound("GET", "/", nil), tt.upstream, tt.cfg)
			require.Error(t, err)
			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.code, te.Code())
		})
	}
}

func TestFailureResponse(t *testing.T) {
	err := &TransportError{Op: "send", URL: "http://u.test/x", Err: context.DeadlineExceeded}
	resp := FailureResponse(err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "upstream_timeout", resp.Header.Get("X-Mockrelay-Failure"))

	var body httputil.ErrorPayload
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, ErrorCodeUpstreamUnreachable, body.Error)
	assert.Contains(t, body.Message, "http://u.test/x")

	plain := FailureResponse(errors.New("boom"))
	assert.Equal(t, ErrorCodeUpstreamUnreachable, plain.Header.Get("X-Mockrelay-Failure"))
}

func TestPrepareResponse_StripsFramingAndSetsLength(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "X-Hop, close")
	h.Set("X-Hop", "1")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("Content-Length", "999")
	h.Set("X-Keep", "1")
	resp := &exchange.Response{StatusCode: 200, Header: h, Body: []byte("hello")}

	out := PrepareResponse(resp, inbound("GET", "/", nil), "", nil)

	for _, name := range []string{"Connection", "X-Hop", "Transfer-Encoding", "Keep-Alive"} {
		assert.Empty(t, out.Header.Values(name), name)
	}
	assert.Equal(t, "1", out.Header.Get("X-Keep"))
	assert.Equal(t, "5", out.Header.Get("Content-Length"))
	assert.Equal(t, "999", resp.Header.Get("Content-Length"), "input must not change")
	assert.Equal(t, "chunked", resp.Header.Get("Transfer-Encoding"))
}

func TestPrepareResponse_BodylessStatusAndHead(t *testing.T) {
	out := PrepareResponse(&exchange.Response{StatusCode: http.StatusNoContent, Header: http.Header{}, Body: []byte("x")}, inbound("GET", "/", nil), "", nil)
	assert.Empty(t, out.Body)
	assert.Empty(t, out.Header.Get("Content-Length"))

	h := http.Header{}
	h.Set("Content-Length", "42")
	out = PrepareResponse(&exchange.Response{StatusCode: 200, Header: h}, inbound("HEAD", "/", nil), "", nil)
	assert.Equal(t, "42", out.Header.Get("Content-Length"))
}

func TestPrepareResponse_RewritesLocation(t *testing.T) {
	disabled := false
	tests := []struct {
		name     string
		location string
		cfg      *config.ProxyConfig
		want     string
	}{
		{"same origin", "http://u.test/next?a=1#f", nil, "http://mock.local:8080/next?a=1#f"},
		{"explicit default port", "http://u.test:80/p", nil, "http://mock.local:8080/p"},
		{"relative", "/next", nil, "/next"},
		{"other origin", "http://other.test/next", nil, "http://other.test/next"},
		{"rewrite off", "http://u.test/next", &config.ProxyConfig{RewriteLocation: &disabled}, "http://u.test/next"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			h.Set("Location", tt.location)
			out := PrepareResponse(&exchange.Response{StatusCode: http.StatusFound, Header: h}, inbound("GET", "/", nil), "http://u.test", tt.cfg)
			assert.Equal(t, tt.want, out.Header.Get("Location"))
		})
	}
}

func TestRelativeLocation(t *testing.T) {
	base, err := url.Parse("http://u.test/api/users")
	require.NoError(t, err)

	tests := []struct {
		location string
		want     string
	}{
		{"http://u.test/next?a=b%20c#f", "/next?a=b%20c#f"},
		{"http://u.test:80", "/"},
		{"http://u.test?q=1", "/?q=1"},
		{"/already/relative", "/already/relative"},
		{"https://u.test/next", "https://u.test/next"},
		{"http://other.test/next", "http://other.test/next"},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeLocation(tt.location, base))
		})
	}
}

func TestWriteResponse(t *testing.T) {
	h := http.Header{}
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	rec := httptest.NewRecorder()

	require.NoError(t, WriteResponse(rec, &exchange.Response{StatusCode: 418, Header: h, Body: []byte{0x00, 0xff}}))
	assert.Equal(t, 418, rec.Code)
	assert.Equal(t, []string{"a=1", "b=2"}, rec.Header().Values("Set-Cookie"))
	assert.Equal(t, []byte{0x00, 0xff}, rec.Body.Bytes())
}
