package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/getmockd/mockrelay/internal/matching"
	"github.com/getmockd/mockrelay/pkg/httputil"
	"github.com/getmockd/mockrelay/pkg/mapping"
)

// MappingListResponse is the body of GET /mappings.
type MappingListResponse struct {
	Mappings []*mapping.Mapping `json:"mappings"`
	Count    int                `json:"count"`
}

// handleListMappings handles GET /mappings.
func (a *API) handleListMappings(w http.ResponseWriter, r *http.Request) {
	origin := mapping.Origin(r.URL.Query().Get("origin"))

	all := a.engine.Mappings().ListMappings()
	out := make([]*mapping.Mapping, 0, len(all))
	for _, m := range all {
		if origin != "" && m.Origin != origin {
			continue
		}
		out = append(out, m)
	}
	httputil.WriteOK(w, MappingListResponse{Mappings: out, Count: len(out)})
}

// handleGetMapping handles GET /mappings/{id}.
func (a *API) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	m, err := a.engine.Mappings().Get(r.PathValue("id"))
	if err != nil {
		httputil.WriteNotFound(w, "not_found", "mapping not found")
		return
	}
	httputil.WriteOK(w, m)
}

// handleCreateMappings handles POST /mappings. The body is a single mapping
// or a list, in JSON or (with a YAML content type) YAML. Either every
// mapping is registered or none is.
func (a *API) handleCreateMappings(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_body", err.Error())
		return
	}

	format := mapping.FormatJSON
	if strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "yaml") {
		format = mapping.FormatYAML
	}
	ms, err := mapping.Unmarshal(data, format)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_mapping", err.Error())
		return
	}
	if len(ms) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_mapping", "no mappings in request body")
		return
	}

	for _, m := range ms {
		m.ControlPlane = true
		if m.Origin == "" {
			m.Origin = mapping.OriginStatic
		}
		if err := validateMapping(m); err != nil {
			writeMappingError(w, err)
			return
		}
	}

	store := a.engine.Mappings()
	for _, m := range ms {
		if err := store.RegisterMapping(m); err != nil {
			writeMappingError(w, err)
			return
		}
		a.log.Info("mapping registered", "mappingId", m.ID, "method", m.Request.Method, "path", m.Request.Path)
	}

	if len(ms) == 1 {
		httputil.WriteCreated(w, ms[0])
		return
	}
	httputil.WriteCreated(w, MappingListResponse{Mappings: ms, Count: len(ms)})
}

// handleDeleteMapping handles DELETE /mappings/{id}.
func (a *API) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.engine.Mappings().DeleteMapping(id); err != nil {
		if errors.Is(err, mapping.ErrNotFound) {
			httputil.WriteNotFound(w, "not_found", "mapping not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	a.log.Info("mapping deleted", "mappingId", id)
	httputil.WriteNoContent(w)
}

// DeleteResponse reports how many mappings a bulk delete removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// handleDeleteMappings handles DELETE /mappings?origin=... . Control-plane
// mappings are kept.
func (a *API) handleDeleteMappings(w http.ResponseWriter, r *http.Request) {
	origin := mapping.Origin(r.URL.Query().Get("origin"))
	switch origin {
	case mapping.OriginRecorded, mapping.OriginStatic:
	default:
		httputil.WriteBadRequest(w, "invalid_origin", "origin query parameter must be static or recorded")
		return
	}
	n := a.engine.Mappings().DeleteByOrigin(origin)
	a.log.Info("mappings deleted", "origin", origin, "count", n)
	httputil.WriteOK(w, DeleteResponse{Deleted: n})
}

func validateMapping(m *mapping.Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return matching.Validate(&m.Request)
}

func writeMappingError(w http.ResponseWriter, err error) {
	var ve *mapping.ValidationError
	switch {
	case errors.As(err, &ve):
		httputil.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_error", ve.Message, map[string]string{"field": ve.Field})
	case errors.Is(err, mapping.ErrControlPlaneLocked):
		httputil.WriteConflict(w, "control_plane_locked", err.Error())
	default:
		httputil.WriteError(w, http.StatusInternalServerError, "register_failed", err.Error())
	}
}
