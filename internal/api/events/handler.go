// Package events receives survey-engine webhooks and feeds them into the
// event registry.
package events

import (
	"encoding/json"
	"net/http"

	"github.com/suitesync/suitesync/internal/api"
	"github.com/suitesync/suitesync/internal/sync"
)

// Handler serves the webhook endpoints.
type Handler struct {
	registry *sync.Registry
}

// SurveyComplete accepts a survey-completion notification and runs the sync
// pipeline for it. The pipeline is synchronous: by the time the response goes
// out the sync log already reflects the outcome.
func (h *Handler) SurveyComplete(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())

	var ev sync.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID))
		return
	}
	if ev.SurveyID <= 0 || ev.ResponseID <= 0 {
		api.WriteError(w, http.StatusBadRequest,
			api.NewValidationError("surveyId and responseId are required and must be positive", corrID))
		return
	}

	if err := h.registry.Dispatch(r.Context(), sync.EventSurveyComplete, ev); err != nil {
		api.WriteError(w, http.StatusBadGateway, api.NewUpstreamError(err.Error(), corrID))
		return
	}

	api.WriteJSON(w, http.StatusAccepted, map[string]any{
		"status":     "accepted",
		"surveyId":   ev.SurveyID,
		"responseId": ev.ResponseID,
	})
}
