package mappings

import (
	"net/http"

	"github.com/suitesync/suitesync/internal/store"
)

// RegisterRoutes registers the mapping and sync-reporting endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store) {
	h := &Handler{mappings: s.Mappings, syncLog: s.SyncLog}

	mux.HandleFunc("GET /surveys/{surveyId}/mappings", h.ListForSurvey)
	mux.HandleFunc("GET /surveys/{surveyId}/questions/{questionId}/mappings", h.GetForQuestion)
	mux.HandleFunc("PUT /surveys/{surveyId}/questions/{questionId}/mappings", h.Put)
	mux.HandleFunc("DELETE /surveys/{surveyId}/questions/{questionId}/mappings", h.Delete)

	mux.HandleFunc("GET /surveys/{surveyId}/log", h.Log)
	mux.HandleFunc("GET /surveys/{surveyId}/stats", h.Stats)
}
