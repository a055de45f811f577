package events

import (
	"net/http"

	"github.com/suitesync/suitesync/internal/sync"
)

// RegisterRoutes registers the webhook endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, registry *sync.Registry) {
	h := &Handler{registry: registry}

	mux.HandleFunc("POST /events/survey-complete", h.SurveyComplete)
}
