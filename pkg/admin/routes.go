// Route registration for the Admin API.

package admin

import "net/http"

// registerRoutes sets up all API routes.
func (a *API) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)

	// Mappings (control plane)
	mux.HandleFunc("GET /mappings", a.handleListMappings)
	mux.HandleFunc("POST /mappings", a.handleCreateMappings)
	mux.HandleFunc("DELETE /mappings", a.handleDeleteMappings)
	mux.HandleFunc("GET /mappings/{id}", a.handleGetMapping)
	mux.HandleFunc("DELETE /mappings/{id}", a.handleDeleteMapping)

	// Exchange log
	mux.HandleFunc("GET /requests", a.handleListRequests)
	mux.HandleFunc("GET /requests/stream", a.handleStreamRequests)
	mux.HandleFunc("GET /requests/{id}", a.handleGetRequest)
	mux.HandleFunc("DELETE /requests", a.handleClearRequests)

	// Proxy configuration
	mux.HandleFunc("GET /proxy", a.handleGetProxy)
	mux.HandleFunc("PUT /proxy", a.handleSetProxy)
	mux.HandleFunc("DELETE /proxy", a.handleDisableProxy)
}
