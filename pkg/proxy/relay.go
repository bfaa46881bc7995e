package proxy

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/exchange"
)

// framingHeaders describe the upstream connection rather than the entity
// and are never relayed.
var framingHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// LocationHeaders may carry absolute references to the upstream origin.
var LocationHeaders = []string{"Location", "Content-Location"}

// PrepareResponse builds the response sent to the client from an upstream
// (or locally generated) response. The input is not modified.
//
// upstream is the base URL the request was forwarded to; it is empty for
// locally generated responses, which disables Location rewriting.
func PrepareResponse(resp *exchange.Response, inbound *exchange.Request, upstream string, cfg *config.ProxyConfig) *exchange.Response {
	out := resp.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}

	for _, name := range connectionTokens(out.Header) {
		out.Header.Del(name)
	}
	for _, name := range framingHeaders {
		out.Header.Del(name)
	}

	if upstream != "" && inbound != nil && cfg.ShouldRewriteLocation() {
		if base, err := url.Parse(upstream); err == nil {
			for _, name := range LocationHeaders {
				if v := out.Header.Get(name); v != "" {
					out.Header.Set(name, RewriteLocation(v, base, inbound))
				}
			}
		}
	}

	switch {
	case !bodyAllowed(out.StatusCode):
		out.Header.Del("Content-Length")
		out.Body = nil
	case inbound != nil && inbound.Method == http.MethodHead:
		// HEAD keeps the entity length reported by the upstream.
	default:
		out.Header.Set("Content-Length", strconv.Itoa(len(out.Body)))
	}

	return out
}

// RewriteLocation rewrites an absolute reference to the upstream origin so
// it points at the mock server's origin, keeping path, query and fragment
// exactly. Relative references and other origins are returned unchanged.
func RewriteLocation(location string, upstream *url.URL, inbound *exchange.Request) string {
	rest, ok := upstreamPath(location, upstream)
	if !ok || inbound.Host == "" {
		return location
	}

	scheme := inbound.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + inbound.Host + rest
}

// RelativeLocation strips the upstream origin from an absolute reference,
// keeping path, query and fragment exactly. Recorded responses store this
// form so a replay stays on whichever address the mock is served from.
func RelativeLocation(location string, upstream *url.URL) string {
	rest, ok := upstreamPath(location, upstream)
	if !ok {
		return location
	}
	if rest == "" || rest[0] != '/' {
		rest = "/" + rest
	}
	return rest
}

// upstreamPath returns everything after the authority of location, byte for
// byte, when location is an absolute reference to the upstream origin.
func upstreamPath(location string, upstream *url.URL) (string, bool) {
	loc, err := url.Parse(location)
	if err != nil || !loc.IsAbs() || loc.Host == "" || upstream == nil {
		return "", false
	}
	if !sameOrigin(loc, upstream) {
		return "", false
	}
	rest := location[len(loc.Scheme)+len("://"):]
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		return rest[i:], true
	}
	return "", true
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && canonicalHost(a) == canonicalHost(b)
}

func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return host + ":" + port
}

// connectionTokens returns header names listed in Connection.
func connectionTokens(h http.Header) []string {
	var names []string
	for _, v := range h.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if token = strings.TrimSpace(token); token != "" {
				names = append(names, token)
			}
		}
	}
	return names
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// WriteResponse writes resp to w verbatim.
func WriteResponse(w http.ResponseWriter, resp *exchange.Response) error {
	h := w.Header()
	for name, values := range resp.Header {
		h[name] = append([]string(nil), values...)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) == 0 {
		return nil
	}
	_, err := w.Write(resp.Body)
	return err
}
