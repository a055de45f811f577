package admin

import "net/http"

// RegisterRoutes registers the admin endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, cache Refresher, crmClient ConnectionTester) {
	h := &Handler{cache: cache, crm: crmClient}

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /cache/refresh", h.RefreshCache)
	mux.HandleFunc("DELETE /cache", h.ClearCache)
	mux.HandleFunc("GET /connection/test", h.TestConnection)
}
