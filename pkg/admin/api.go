package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/mockrelay/pkg/engine"
	"github.com/getmockd/mockrelay/pkg/logging"
)

// maxRequestBody caps admin request bodies.
const maxRequestBody = 10 << 20

// API serves the admin endpoints for one engine.
type API struct {
	engine    *engine.Engine
	log       *slog.Logger
	apiKey    *apiKeyAuth
	startTime time.Time
	handler   http.Handler
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithAPIKey requires key on every request except /health.
func WithAPIKey(key string) Option {
	return func(a *API) {
		if key != "" {
			a.apiKey = &apiKeyAuth{key: []byte(key)}
		}
	}
}

// New creates the admin API for e.
func New(e *engine.Engine, opts ...Option) *API {
	a := &API{
		engine:    e,
		log:       logging.Nop(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}

	mux := http.NewServeMux()
	a.registerRoutes(mux)

	var h http.Handler = mux
	if a.apiKey != nil {
		h = a.apiKey.middleware(h)
	}
	a.handler = h
	return a
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}
