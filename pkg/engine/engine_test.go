package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/exchange"
	"github.com/getmockd/mockrelay/pkg/httputil"
	"github.com/getmockd/mockrelay/pkg/mapping"
	"github.com/getmockd/mockrelay/pkg/recording"
	"github.com/getmockd/mockrelay/pkg/router"
)

// upstream is a test upstream that remembers the last request it saw.
type upstream struct {
	*httptest.Server
	hits atomic.Int32

	mu      sync.Mutex
	header  http.Header
	body    []byte
	handler http.HandlerFunc
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{handler: handler}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.header = r.Header.Clone()
		u.body = body
		u.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		u.handler(w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) lastHeader() http.Header {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.header
}

func (u *upstream) lastBody() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.body
}

func textHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, body)
	}
}

func newRequest(method, path string, header http.Header, body []byte) *exchange.Request {
	if header == nil {
		header = http.Header{}
	}
	return &exchange.Request{
		Method: method,
		Path:   path,
		Host:   "mock.local:8080",
		Scheme: "http",
		Header: header,
		Body:   body,
	}
}

func handle(e *Engine, req *exchange.Request, cfg *config.ProxyConfig) *exchange.Response {
	return e.HandleRequest(context.Background(), req, e.Mappings().Snapshot(), cfg)
}

func TestHandleRequest_ProxiesUnmatchedAndRecords(t *testing.T) {
	up := newUpstream(t, textHandler("body"))
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: up.URL, SaveMapping: true}

	resp := handle(e, newRequest("GET", "/p", nil, nil), cfg)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body", string(resp.Body))
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "4", resp.Header.Get("Content-Length"))
	assert.Equal(t, 1, e.Mappings().Count())

	log := e.QueryLog()
	require.Len(t, log, 1)
	entry := log[0]
	assert.Equal(t, int64(1), entry.Seq)
	assert.Equal(t, string(router.RouteProxy), entry.Route)
	assert.True(t, entry.Proxied)
	assert.Equal(t, up.URL+"/p", entry.Upstream)
	assert.NotEmpty(t, entry.RecordedMappingID)
	assert.Equal(t, 200, entry.Response.Status)
	assert.Equal(t, "body", string(entry.Response.Body))

	// The recorded mapping now answers the same request locally.
	resp = handle(e, newRequest("GET", "/p", nil, nil), cfg)
	assert.Equal(t, "body", string(resp.Body))
	assert.Equal(t, int32(1), up.hits.Load())
	assert.Equal(t, 1, e.Mappings().Count())

	log = e.QueryLog()
	require.Len(t, log, 2)
	assert.Equal(t, string(router.RouteRespond), log[1].Route)
	assert.Equal(t, log[0].RecordedMappingID, log[1].MappingID)
	assert.False(t, log[1].Proxied)
}

func TestHandleRequest_AuthorizationForwardedAndMatched(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Header.Get("Authorization"))
	})
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: up.URL, SaveMapping: true}

	req := newRequest("POST", "/p", http.Header{"Authorization": {"BASIC test-A"}}, nil)
	resp := handle(e, req, cfg)

	assert.Equal(t, "BASIC test-A", string(resp.Body))

	ms := e.Mappings().ListMappings()
	require.Len(t, ms, 1)
	assert.Contains(t, ms[0].Request.Headers,
		mapping.ValueMatcher{Name: "Authorization", Pattern: "BASIC test-A", Exact: true})
}

func TestHandleRequest_ExcludedCookies(t *testing.T) {
	up := newUpstream(t, textHandler("ok"))
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: up.URL, SaveMapping: true, ExcludedCookies: []string{"S"}}

	req := newRequest("GET", "/p", http.Header{"Cookie": {"S=x; s=y; G=z"}}, nil)
	resp := handle(e, req, cfg)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []string{"G=z"}, up.lastHeader().Values("Cookie"))

	ms := e.Mappings().ListMappings()
	require.Len(t, ms, 1)
	assert.Equal(t, []mapping.ValueMatcher{{Name: "G", Pattern: "z", Exact: true}}, ms[0].Request.Cookies)

	// The exchange log keeps what the client actually sent.
	log := e.QueryLog()
	require.Len(t, log, 1)
	assert.Len(t, log[0].Request.Cookies, 3)
}

func TestHandleRequest_HeadersForwardedExceptExcluded(t *testing.T) {
	up := newUpstream(t, textHandler("ok"))
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: up.URL, ExcludedHeaders: []string{"x-SECRET"}}

	h := http.Header{
		"Content-Type":  {"application/json"},
		"X-Custom":      {"one", "two"},
		"X-Secret":      {"hidden"},
		"Authorization": {"Bearer abc"},
	}
	resp := handle(e, newRequest("GET", "/p", h, nil), cfg)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := up.lastHeader()
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, []string{"one", "two"}, got.Values("X-Custom"))
	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
	assert.Empty(t, got.Values("X-Secret"))
	assert.Empty(t, got.Get("User-Agent"))
}

func TestHandleRequest_UpstreamUnreachable(t *testing.T) {
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: "http://upstream.invalid", SaveMapping: true, Timeout: 5 * time.Second}

	resp := handle(e, newRequest("GET", "/p", nil, nil), cfg)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.NotEmpty(t, resp.Body)
	var payload httputil.ErrorPayload
	require.NoError(t, json.Unmarshal(resp.Body, &payload))
	assert.Equal(t, "error", payload.Status)
	assert.Equal(t, "upstream_unreachable", payload.Error)
	assert.NotEmpty(t, payload.Message)

	log := e.QueryLog()
	require.Len(t, log, 1)
	assert.True(t, log[0].Proxied)
	assert.NotEmpty(t, log[0].Error)
	assert.Equal(t, http.StatusInternalServerError, log[0].Response.Status)
	assert.Equal(t, 0, e.Mappings().Count())
}

func TestHandleRequest_UpstreamTimeout(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: up.URL, Timeout: 50 * time.Millisecond}

	resp := handle(e, newRequest("GET", "/slow", nil, nil), cfg)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "upstream_timeout", resp.Header.Get("X-Mockrelay-Failure"))
	assert.Len(t, e.QueryLog(), 1)
}

func TestHandleRequest_ControlPlaneWinsOverProxy(t *testing.T) {
	up := newUpstream(t, textHandler("upstream"))
	e := New(Options{})
	require.NoError(t, e.Mappings().RegisterMapping(&mapping.Mapping{
		Request:      mapping.RequestMatcher{Method: "GET", Path: "/p"},
		Response:     &mapping.ResponseTemplate{Status: 200, Body: mapping.Payload("local")},
		ControlPlane: true,
	}))
	cfg := &config.ProxyConfig{URL: up.URL, SaveMapping: true}

	resp := handle(e, newRequest("GET", "/p", nil, nil), cfg)

	assert.Equal(t, "local", string(resp.Body))
	assert.Equal(t, int32(0), up.hits.Load())
	assert.Equal(t, 1, e.Mappings().Count())

	log := e.QueryLog()
	require.Len(t, log, 1)
	assert.Equal(t, string(router.RouteRespond), log[0].Route)
	assert.False(t, log[0].Proxied)
}

func TestHandleRequest_RecordsThroughControlPlaneProxyMapping(t *testing.T) {
	up := newUpstream(t, textHandler("upstream"))
	var writes atomic.Int32
	writer := recording.MappingWriterFunc(func(string, []byte) error {
		writes.Add(1)
		return nil
	})
	e := New(Options{Writer: writer})
	cp := &mapping.Mapping{
		Request:      mapping.RequestMatcher{Method: "GET", PathPattern: "^/api/.*"},
		Proxy:        &mapping.ProxyAction{URL: up.URL},
		ControlPlane: true,
	}
	require.NoError(t, e.Mappings().RegisterMapping(cp))
	cfg := &config.ProxyConfig{URL: "http://unused.invalid", SaveMapping: true, SaveMappingToFile: true}

	resp := handle(e, newRequest("GET", "/api/users", nil, nil), cfg)

	assert.Equal(t, "upstream", string(resp.Body))
	assert.Equal(t, int32(1), writes.Load())
	assert.Equal(t, 2, e.Mappings().Count())
	log := e.QueryLog()
	require.Len(t, log, 1)
	assert.Equal(t, cp.ID, log[0].MappingID)
	assert.NotEmpty(t, log[0].RecordedMappingID)
	assert.Empty(t, log[0].Error)

	// The control-plane mapping keeps answering ahead of the recording.
	resp = handle(e, newRequest("GET", "/api/users", nil, nil), cfg)
	assert.Equal(t, "upstream", string(resp.Body))
	assert.Equal(t, int32(2), up.hits.Load())
	log = e.QueryLog()
	require.Len(t, log, 2)
	assert.Equal(t, cp.ID, log[1].MappingID)
}

func TestHandleRequest_NoMatchNoProxy(t *testing.T) {
	e := New(Options{})

	resp := handle(e, newRequest("GET", "/missing", nil, nil), nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var payload httputil.ErrorPayload
	require.NoError(t, json.Unmarshal(resp.Body, &payload))
	assert.Equal(t, ErrorCodeNoMatchingMapping, payload.Error)

	log := e.QueryLog()
	require.Len(t, log, 1)
	assert.Equal(t, string(router.RouteNone), log[0].Route)
}

func TestHandleRequest_BinaryBodyRoundTrip(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	})
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: up.URL}

	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}
	h := http.Header{"Content-Type": {"application/octet-stream"}}
	resp := handle(e, newRequest("PUT", "/blob", h, payload), cfg)

	assert.Equal(t, payload, up.lastBody())
	assert.Equal(t, payload, resp.Body)
	assert.Equal(t, "256", resp.Header.Get("Content-Length"))

	log := e.QueryLog()
	require.Len(t, log, 1)
	assert.Equal(t, exchange.BodyBinary, log[0].Request.BodyKind)
	assert.Equal(t, payload, []byte(log[0].Response.Body))
}

func TestHandleRequest_MultipartPassthrough(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: up.URL}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "gopher"))
	fw, err := mw.CreateFormFile("file", "data.bin")
	require.NoError(t, err)
	_, _ = fw.Write([]byte{0x00, 0xfe, 0xff})
	require.NoError(t, mw.Close())

	h := http.Header{"Content-Type": {mw.FormDataContentType()}}
	resp := handle(e, newRequest("POST", "/upload", h, buf.Bytes()), cfg)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Body)
	assert.Equal(t, mw.FormDataContentType(), up.lastHeader().Get("Content-Type"))
	assert.Equal(t, buf.Bytes(), up.lastBody())
}

func TestHandleRequest_RedirectRelayedWithLocationRewrite(t *testing.T) {
	var upURL string
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/abs":
			w.Header().Set("Location", upURL+"/next?a=b%20c#frag")
		case "/rel":
			w.Header().Set("Location", "/next")
		default:
			w.Header().Set("Location", "https://elsewhere.example/next")
		}
		w.WriteHeader(http.StatusFound)
	})
	upURL = up.URL
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: up.URL}

	resp := handle(e, newRequest("GET", "/abs", nil, nil), cfg)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://mock.local:8080/next?a=b%20c#frag", resp.Header.Get("Location"))

	resp = handle(e, newRequest("GET", "/rel", nil, nil), cfg)
	assert.Equal(t, "/next", resp.Header.Get("Location"))

	resp = handle(e, newRequest("GET", "/other", nil, nil), cfg)
	assert.Equal(t, "https://elsewhere.example/next", resp.Header.Get("Location"))

	// Redirects are relayed, never followed.
	assert.Equal(t, int32(3), up.hits.Load())

	off := false
	cfg.RewriteLocation = &off
	resp = handle(e, newRequest("GET", "/abs", nil, nil), cfg)
	assert.Equal(t, upURL+"/next?a=b%20c#frag", resp.Header.Get("Location"))
}

func TestHandleRequest_ReplayedRedirectStaysOnMock(t *testing.T) {
	var upURL string
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", upURL+"/next?a=1")
		w.WriteHeader(http.StatusFound)
	})
	upURL = up.URL
	e := New(Options{})
	cfg := &config.ProxyConfig{URL: up.URL, SaveMapping: true}

	resp := handle(e, newRequest("GET", "/start", nil, nil), cfg)
	assert.Equal(t, "http://mock.local:8080/next?a=1", resp.Header.Get("Location"))

	resp = handle(e, newRequest("GET", "/start", nil, nil), cfg)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/next?a=1", resp.Header.Get("Location"))
	assert.Equal(t, int32(1), up.hits.Load())

	log := e.QueryLog()
	require.Len(t, log, 2)
	assert.Equal(t, string(router.RouteRespond), log[1].Route)
}

func TestHandleRequest_SaveMappingToFileOnly(t *testing.T) {
	up := newUpstream(t, textHandler("body"))
	var mu sync.Mutex
	files := map[string][]byte{}
	calls := 0
	writer := recording.MappingWriterFunc(func(name string, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		files[name] = data
		return nil
	})
	e := New(Options{Writer: writer})
	cfg := &config.ProxyConfig{URL: up.URL, SaveMappingToFile: true}

	resp := handle(e, newRequest("GET", "/p", nil, nil), cfg)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, e.Mappings().Count())
	assert.Contains(t, files, "Proxy_Mapping_for_GET_p.json")

	log := e.QueryLog()
	require.Len(t, log, 1)
	assert.NotEmpty(t, log[0].RecordedMappingID)
}

func TestHandleRequest_RecordingFailureKeepsResponse(t *testing.T) {
	up := newUpstream(t, textHandler("body"))
	writer := recording.MappingWriterFunc(func(string, []byte) error {
		return errors.New("disk full")
	})
	e := New(Options{Writer: writer})
	cfg := &config.ProxyConfig{URL: up.URL, SaveMappingToFile: true}

	resp := handle(e, newRequest("GET", "/p", nil, nil), cfg)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body", string(resp.Body))
	log := e.QueryLog()
	require.Len(t, log, 1)
	assert.Contains(t, log[0].Error, "recording")
	assert.Contains(t, log[0].Error, "disk full")
	assert.Empty(t, log[0].RecordedMappingID)
}

func TestHandleRequest_ConcurrentRequestsLogOncePerRequest(t *testing.T) {
	e := New(Options{})
	require.NoError(t, e.Mappings().RegisterMapping(&mapping.Mapping{
		Request:  mapping.RequestMatcher{Method: "GET", PathPattern: "^/items/\\d+$"},
		Response: &mapping.ResponseTemplate{Status: 200, Body: mapping.Payload("item")},
	}))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := handle(e, newRequest("GET", fmt.Sprintf("/items/%d", i), nil, nil), nil)
			assert.Equal(t, "item", string(resp.Body))
		}(i)
	}
	wg.Wait()

	log := e.QueryLog()
	require.Len(t, log, n)
	for i, entry := range log {
		assert.Equal(t, int64(i+1), entry.Seq)
	}
}

func TestServeHTTP_EndToEnd(t *testing.T) {
	up := newUpstream(t, textHandler("body"))
	e := New(Options{Proxy: &config.ProxyConfig{URL: up.URL, SaveMapping: true}})
	front := httptest.NewServer(e)
	t.Cleanup(front.Close)

	for i := 0; i < 2; i++ {
		resp, err := http.Get(front.URL + "/p?x=1")
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "body", string(body))
		assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	}

	assert.Equal(t, int32(1), up.hits.Load())
	assert.Equal(t, 1, e.Mappings().Count())
	assert.Len(t, e.QueryLog(), 2)
}

func TestServeHTTP_RejectsOversizedBody(t *testing.T) {
	up := newUpstream(t, textHandler("body"))
	e := New(Options{Proxy: &config.ProxyConfig{URL: up.URL, MaxBodySize: 10}})
	front := httptest.NewServer(e)
	t.Cleanup(front.Close)

	resp, err := http.Post(front.URL+"/p", "text/plain", strings.NewReader(strings.Repeat("x", 20)))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Contains(t, string(body), "limit 10 bytes")
	assert.Equal(t, int32(0), up.hits.Load())

	log := e.QueryLog()
	require.Len(t, log, 1)
	assert.Equal(t, "rejected", log[0].Route)
	assert.Contains(t, log[0].Error, "limit 10 bytes")
}

func TestSetProxyConfig_Clones(t *testing.T) {
	e := New(Options{})
	assert.Nil(t, e.ProxyConfig())

	cfg := &config.ProxyConfig{URL: "http://a", ExcludedHeaders: []string{"X-A"}}
	e.SetProxyConfig(cfg)
	cfg.ExcludedHeaders[0] = "X-B"

	assert.Equal(t, []string{"X-A"}, e.ProxyConfig().ExcludedHeaders)

	e.SetProxyConfig(nil)
	assert.Nil(t, e.ProxyConfig())
}
