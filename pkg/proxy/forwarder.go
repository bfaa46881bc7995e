package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/exchange"
	"github.com/getmockd/mockrelay/pkg/logging"
)

// Options configures a Forwarder.
type Options struct {
	// Transport overrides the HTTP transport (tests, custom dialers).
	Transport http.RoundTripper

	// Logger for forwarding diagnostics (nil = no logging).
	Logger *slog.Logger
}

// Forwarder sends captured requests to an upstream.
type Forwarder struct {
	client *http.Client
	logger *slog.Logger
}

// Result is a completed upstream exchange.
type Result struct {
	// URL is the full upstream URL the request was sent to.
	URL string

	// Outbound is the request as forwarded, after exclusion filtering.
	Outbound *exchange.Request

	// Response is the buffered upstream response.
	Response *exchange.Response

	Duration time.Duration
}

// NewForwarder creates a Forwarder.
func NewForwarder(opts Options) *Forwarder {
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.DisableCompression = true
		transport = t
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Forwarder{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// TargetURL joins the upstream base URL with the request's escaped path and
// raw query. A base path prefix is kept.
func TargetURL(upstream string, req *exchange.Request) (string, error) {
	base, err := url.Parse(upstream)
	if err != nil {
		return "", fmt.Errorf("invalid upstream URL %q: %w", upstream, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid upstream URL %q: scheme and host are required", upstream)
	}
	return base.Scheme + "://" + base.Host + strings.TrimSuffix(base.EscapedPath(), "/") + req.RequestURI(), nil
}

// Forward sends req to upstream and buffers the response. The exchange is
// bounded by cfg's timeout and by ctx. It never retries; every failure is a
// *TransportError.
func (f *Forwarder) Forward(ctx context.Context, req *exchange.Request, upstream string, cfg *config.ProxyConfig) (*Result, error) {
	start := time.Now()

	target, err := TargetURL(upstream, req)
	if err != nil {
		return nil, &TransportError{Op: "build", URL: upstream, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.EffectiveTimeout())
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	outReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &TransportError{Op: "build", URL: target, Err: err}
	}

	headers := OutboundHeaders(req, cfg)
	outReq.Header = headers.Clone()
	if _, ok := outReq.Header["User-Agent"]; !ok {
		// Suppress Go's default User-Agent so only inbound headers reach the upstream.
		outReq.Header["User-Agent"] = []string{""}
	}
	if cfg != nil && cfg.PreserveHost && req.Host != "" {
		outReq.Host = req.Host
	}

	f.logger.Debug("forwarding request", "method", req.Method, "url", target)

	resp, err := f.client.Do(outReq)
	if err != nil {
		f.logger.Warn("upstream request failed", "method", req.Method, "url", target, "error", err)
		return nil, &TransportError{Op: "send", URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	limit := cfg.EffectiveMaxBodySize()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &TransportError{Op: "read", URL: target, Err: err}
	}
	if int64(len(respBody)) > limit {
		return nil, &TransportError{Op: "read", URL: target, Err: ErrResponseTooLarge}
	}

	outbound := req.Clone()
	outbound.Header = headers
	if cfg == nil || !cfg.PreserveHost {
		outbound.Host = outReq.URL.Host
	}

	duration := time.Since(start)
	f.logger.Debug("upstream responded", "method", req.Method, "url", target, "status", resp.StatusCode, "duration", duration)

	return &Result{
		URL:      target,
		Outbound: outbound,
		Response: &exchange.Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       respBody,
		},
		Duration: duration,
	}, nil
}
