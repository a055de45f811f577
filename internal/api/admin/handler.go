// Package admin serves operational endpoints: health, field cache maintenance
// and CRM connectivity checks.
package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/suitesync/suitesync/internal/api"
	"github.com/suitesync/suitesync/internal/crm"
	"github.com/suitesync/suitesync/internal/fieldcache"
)

// Refresher maintains the field metadata cache. The fieldcache.Cache
// satisfies it.
type Refresher interface {
	RefreshAll(ctx context.Context, modules []string) map[string]fieldcache.RefreshResult
	ClearAllCaches(ctx context.Context, modules []string) error
}

// ConnectionTester probes the CRM. The crm.Client satisfies it.
type ConnectionTester interface {
	TestConnection(ctx context.Context) crm.ConnectionReport
	ListModules(ctx context.Context) ([]string, error)
}

// Handler serves the admin endpoints.
type Handler struct {
	cache Refresher
	crm   ConnectionTester
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RefreshCache force-refreshes field definitions. The request body may name
// the modules to refresh; an absent or empty list refreshes every module the
// CRM reports.
func (h *Handler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())

	var req struct {
		Modules []string `json:"modules"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID))
			return
		}
	}

	modules := req.Modules
	if len(modules) == 0 {
		var err error
		modules, err = h.crm.ListModules(r.Context())
		if err != nil {
			api.WriteError(w, http.StatusBadGateway, api.NewUpstreamError(err.Error(), corrID))
			return
		}
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"results": h.cache.RefreshAll(r.Context(), modules),
	})
}

// ClearCache drops the cached field definitions of every module the CRM
// reports.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())

	modules, err := h.crm.ListModules(r.Context())
	if err != nil {
		api.WriteError(w, http.StatusBadGateway, api.NewUpstreamError(err.Error(), corrID))
		return
	}
	if err := h.cache.ClearAllCaches(r.Context(), modules); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewInternalError(err.Error(), corrID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestConnection reports whether the CRM credentials work and which modules
// are visible. Failures are part of the report, not HTTP errors.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.crm.TestConnection(r.Context()))
}
