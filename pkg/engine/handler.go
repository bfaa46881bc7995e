package engine

import (
	"errors"
	"net/http"
	"time"

	"github.com/getmockd/mockrelay/pkg/exchange"
	"github.com/getmockd/mockrelay/pkg/httputil"
	"github.com/getmockd/mockrelay/pkg/proxy"
	"github.com/getmockd/mockrelay/pkg/requestlog"
)

// ErrorCodeBodyTooLarge is the error field of the 413 answer for oversized
// request bodies.
const ErrorCodeBodyTooLarge = "request_too_large"

// ServeHTTP captures r and answers it through HandleRequest using the
// current mapping snapshot and proxy configuration.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := e.ProxyConfig()

	req, err := exchange.Capture(r, cfg.EffectiveMaxBodySize())
	if err != nil {
		e.rejectRequest(w, r, err)
		return
	}

	resp := e.HandleRequest(r.Context(), req, e.mappings.Snapshot(), cfg)
	if err := proxy.WriteResponse(w, resp); err != nil {
		e.logger.Debug("failed to write response", "method", req.Method, "path", req.Path, "error", err)
	}
}

// rejectRequest answers a request whose body could not be captured. It is
// still logged, without a body.
func (e *Engine) rejectRequest(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusBadRequest, "bad_request"
	if errors.Is(err, exchange.ErrBodyTooLarge) {
		status, code = http.StatusRequestEntityTooLarge, ErrorCodeBodyTooLarge
	}

	req := &exchange.Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Host:       r.Host,
		RemoteAddr: r.RemoteAddr,
		Header:     r.Header.Clone(),
	}
	entry := requestlog.NewEntry(req, nil)
	entry.Route = "rejected"
	entry.Error = err.Error()

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	resp := proxy.PrepareResponse(&exchange.Response{
		StatusCode: status,
		Header:     h,
		Body:       httputil.ErrorBody(code, err.Error()),
	}, req, "", nil)

	e.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	// The unread remainder of the body makes the connection unusable.
	w.Header().Set("Connection", "close")
	if werr := proxy.WriteResponse(w, resp); werr != nil {
		e.logger.Debug("failed to write response", "error", werr)
	}

	entry.SetResponse(resp)
	entry.DurationMs = time.Since(entry.Timestamp).Milliseconds()
	e.log.Log(entry)
}
