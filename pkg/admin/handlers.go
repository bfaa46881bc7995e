package admin

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getmockd/mockrelay/pkg/httputil"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Uptime   int    `json:"uptime"`
	Mappings int    `json:"mappings"`
	Requests int    `json:"requests"`
	Proxying bool   `json:"proxying"`
}

// handleHealth handles GET /health.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, HealthResponse{
		Status:   "ok",
		Uptime:   int(time.Since(a.startTime).Seconds()),
		Mappings: a.engine.Mappings().Count(),
		Requests: a.engine.RequestLog().Count(),
		Proxying: a.engine.ProxyConfig() != nil,
	})
}

// readBody reads a request body up to maxRequestBody.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxRequestBody {
		return nil, fmt.Errorf("body exceeds %d bytes", maxRequestBody)
	}
	return data, nil
}
