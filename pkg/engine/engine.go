package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/exchange"
	"github.com/getmockd/mockrelay/pkg/httputil"
	"github.com/getmockd/mockrelay/pkg/logging"
	"github.com/getmockd/mockrelay/pkg/mapping"
	"github.com/getmockd/mockrelay/pkg/proxy"
	"github.com/getmockd/mockrelay/pkg/recording"
	"github.com/getmockd/mockrelay/pkg/requestlog"
	"github.com/getmockd/mockrelay/pkg/router"
)

// ErrorCodeNoMatchingMapping is the error field of the 404 answer given
// when nothing handles a request.
const ErrorCodeNoMatchingMapping = "no_matching_mapping"

// Options configures an Engine. Nil fields get in-memory defaults.
type Options struct {
	Mappings  *mapping.Store
	Log       requestlog.Store
	Forwarder *proxy.Forwarder

	// Writer persists recorded mappings when SaveMappingToFile is on.
	Writer recording.MappingWriter

	// Proxy is the configuration used by ServeHTTP; nil disables proxying.
	Proxy *config.ProxyConfig

	Logger *slog.Logger
}

// Engine handles mock traffic.
type Engine struct {
	mappings  *mapping.Store
	log       requestlog.Store
	forwarder *proxy.Forwarder
	recorder  *recording.Recorder
	proxyCfg  atomic.Pointer[config.ProxyConfig]
	logger    *slog.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	mappings := opts.Mappings
	if mappings == nil {
		mappings = mapping.NewStore()
	}
	log := opts.Log
	if log == nil {
		log = requestlog.NewMemoryStore()
	}
	forwarder := opts.Forwarder
	if forwarder == nil {
		forwarder = proxy.NewForwarder(proxy.Options{Logger: logger.With("component", "forwarder")})
	}

	e := &Engine{
		mappings:  mappings,
		log:       log,
		forwarder: forwarder,
		recorder: recording.NewRecorder(recording.Options{
			Mappings: mappings,
			Writer:   opts.Writer,
			Logger:   logger.With("component", "recorder"),
		}),
		logger: logger,
	}
	e.SetProxyConfig(opts.Proxy)
	return e
}

// Mappings returns the mapping store (the control-plane interface).
func (e *Engine) Mappings() *mapping.Store {
	return e.mappings
}

// RequestLog returns the exchange log.
func (e *Engine) RequestLog() requestlog.Store {
	return e.log
}

// ProxyConfig returns the active proxy configuration, or nil.
func (e *Engine) ProxyConfig() *config.ProxyConfig {
	return e.proxyCfg.Load()
}

// SetProxyConfig replaces the proxy configuration used by ServeHTTP. The
// value is cloned; nil disables proxying.
func (e *Engine) SetProxyConfig(cfg *config.ProxyConfig) {
	if cfg == nil {
		e.proxyCfg.Store(nil)
		return
	}
	c := cfg.Clone()
	e.proxyCfg.Store(&c)
}

// QueryLog returns every logged exchange in sequence order.
func (e *Engine) QueryLog() []*requestlog.Entry {
	return e.log.List(nil)
}

// HandleRequest resolves req against snap and produces the response for the
// client. cfg may be nil, in which case unmatched requests are answered 404.
//
// Every call appends exactly one entry to the exchange log. Forwarding
// failures are answered with a 500 diagnostic response; recording failures
// are logged and noted on the entry but never change the response.
func (e *Engine) HandleRequest(ctx context.Context, req *exchange.Request, snap *mapping.Snapshot, cfg *config.ProxyConfig) *exchange.Response {
	start := time.Now()
	entry := requestlog.NewEntry(req, nil)
	entry.Timestamp = start

	decision := router.Resolve(req, snap, cfg)
	entry.Route = string(decision.Route)
	if decision.Mapping != nil {
		entry.MappingID = decision.Mapping.ID
	}

	var resp *exchange.Response
	switch decision.Route {
	case router.RouteRespond:
		resp = proxy.PrepareResponse(templateResponse(decision.Mapping.Response), req, "", cfg)

	case router.RouteProxy:
		resp = e.proxyRequest(ctx, req, snap, decision, entry)

	default:
		e.logger.Debug("no matching mapping", "method", req.Method, "path", req.Path)
		resp = proxy.PrepareResponse(notFoundResponse(req), req, "", cfg)
	}

	entry.SetResponse(resp)
	entry.DurationMs = time.Since(start).Milliseconds()
	e.log.Log(entry)

	return resp
}

func (e *Engine) proxyRequest(ctx context.Context, req *exchange.Request, snap *mapping.Snapshot, d router.Decision, entry *requestlog.Entry) *exchange.Response {
	entry.Proxied = true

	result, err := e.forwarder.Forward(ctx, req, d.Upstream, d.Proxy)
	if err != nil {
		entry.Error = err.Error()
		var te *proxy.TransportError
		if errors.As(err, &te) {
			entry.Upstream = te.URL
		}
		return proxy.PrepareResponse(proxy.FailureResponse(err), req, "", d.Proxy)
	}
	entry.Upstream = result.URL

	resp := proxy.PrepareResponse(result.Response, req, d.Upstream, d.Proxy)

	if d.Proxy.RecordingEnabled() {
		rec := recording.NewRecording(req, result.Outbound, result.Response, result.URL, result.Duration)
		out, rerr := e.recorder.Record(rec, snap, d.Proxy)
		if out != nil && out.Mapping != nil && (out.Registered || out.Written) {
			entry.RecordedMappingID = out.Mapping.ID
		}
		if rerr != nil {
			entry.Error = fmt.Sprintf("recording: %v", rerr)
		}
	}

	return resp
}

func templateResponse(t *mapping.ResponseTemplate) *exchange.Response {
	status := t.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &exchange.Response{
		StatusCode: status,
		Header:     t.Headers.Clone(),
		Body:       []byte(t.Body),
	}
}

func notFoundResponse(req *exchange.Request) *exchange.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &exchange.Response{
		StatusCode: http.StatusNotFound,
		Header:     h,
		Body: httputil.ErrorBody(ErrorCodeNoMatchingMapping,
			fmt.Sprintf("%v: %s %s", router.ErrNoMappingMatched, req.Method, req.Path)),
	}
}
