package proxy

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/exchange"
)

// FilterCookieHeader drops excluded pairs from one raw Cookie header value.
// Surviving pairs are kept byte-for-byte; values are never parsed.
func FilterCookieHeader(line string, cfg *config.ProxyConfig) string {
	parts := strings.Split(line, ";")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if cfg.CookieExcluded(exchange.CookieName(part)) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.TrimSpace(strings.Join(kept, ";"))
}

// OutboundHeaders returns the headers to forward for req: every inbound
// header except excluded names and names that are not valid HTTP tokens.
// Cookie headers are filtered as raw text and dropped when nothing survives.
func OutboundHeaders(req *exchange.Request, cfg *config.ProxyConfig) http.Header {
	out := make(http.Header, len(req.Header))
	for name, values := range req.Header {
		if !httpguts.ValidHeaderFieldName(name) || cfg.HeaderExcluded(name) {
			continue
		}
		if http.CanonicalHeaderKey(name) == "Cookie" {
			continue
		}
		out[name] = append([]string(nil), values...)
	}

	if cfg.HeaderExcluded("Cookie") {
		return out
	}
	lines := req.Header.Values("Cookie")
	if len(lines) == 0 {
		return out
	}
	if cfg == nil || len(cfg.ExcludedCookies) == 0 {
		out["Cookie"] = append([]string(nil), lines...)
		return out
	}
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if v := FilterCookieHeader(line, cfg); v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) > 0 {
		out.Set("Cookie", strings.Join(kept, "; "))
	}
	return out
}
