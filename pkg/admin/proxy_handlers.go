package admin

import (
	"errors"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/httputil"
)

// ProxyStatusResponse is the body of GET /proxy.
type ProxyStatusResponse struct {
	Enabled bool                `json:"enabled"`
	Config  *config.ProxyConfig `json:"config,omitempty"`
}

// handleGetProxy handles GET /proxy.
func (a *API) handleGetProxy(w http.ResponseWriter, _ *http.Request) {
	cfg := a.engine.ProxyConfig()
	httputil.WriteOK(w, ProxyStatusResponse{Enabled: cfg != nil, Config: cfg})
}

// handleSetProxy handles PUT /proxy. The body may be JSON or YAML; YAML
// decoding lets timeouts be written as "30s".
func (a *API) handleSetProxy(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_body", err.Error())
		return
	}

	var cfg config.ProxyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		httputil.WriteBadRequest(w, "invalid_body", "failed to parse proxy config: "+err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		var ce *config.Error
		if errors.As(err, &ce) {
			httputil.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_error", ce.Message, map[string]string{"field": ce.Field})
			return
		}
		httputil.WriteBadRequest(w, "validation_error", err.Error())
		return
	}

	a.engine.SetProxyConfig(&cfg)
	a.log.Info("proxy configured", "upstream", cfg.URL, "recording", cfg.RecordingEnabled())
	httputil.WriteOK(w, ProxyStatusResponse{Enabled: true, Config: a.engine.ProxyConfig()})
}

// handleDisableProxy handles DELETE /proxy.
func (a *API) handleDisableProxy(w http.ResponseWriter, _ *http.Request) {
	a.engine.SetProxyConfig(nil)
	a.log.Info("proxy disabled")
	httputil.WriteNoContent(w)
}
