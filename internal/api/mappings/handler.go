// Package mappings serves the field-mapping configuration endpoints and the
// per-survey sync reporting.
package mappings

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/suitesync/suitesync/internal/api"
	"github.com/suitesync/suitesync/internal/store"
)

const maxDocumentSize = 1 << 20

// Handler serves the mapping CRUD and sync-log endpoints.
type Handler struct {
	mappings store.MappingStore
	syncLog  store.SyncLogStore
}

// ListForSurvey returns every mapping of a survey, grouped by question.
func (h *Handler) ListForSurvey(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	surveyID, ok := pathInt(w, r, "surveyId", corrID)
	if !ok {
		return
	}

	byQuestion, err := h.mappings.GetMappingsForSurvey(r.Context(), surveyID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewInternalError(err.Error(), corrID))
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"surveyId":  surveyID,
		"questions": byQuestion,
	})
}

// GetForQuestion returns one question's mappings in document form.
func (h *Handler) GetForQuestion(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	_, ok := pathInt(w, r, "surveyId", corrID)
	if !ok {
		return
	}
	questionID, ok := pathInt(w, r, "questionId", corrID)
	if !ok {
		return
	}

	list, err := h.mappings.GetMappings(r.Context(), questionID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewInternalError(err.Error(), corrID))
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"mappings": list})
}

// Put replaces one question's mappings wholesale from a mapping document.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	surveyID, ok := pathInt(w, r, "surveyId", corrID)
	if !ok {
		return
	}
	questionID, ok := pathInt(w, r, "questionId", corrID)
	if !ok {
		return
	}

	doc, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Unreadable request body", corrID))
		return
	}

	if err := h.mappings.SyncFromJSON(r.Context(), surveyID, questionID, doc); err != nil {
		if isInputError(err) {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError(err.Error(), corrID))
			return
		}
		api.WriteError(w, http.StatusInternalServerError, api.NewInternalError(err.Error(), corrID))
		return
	}

	list, err := h.mappings.GetMappings(r.Context(), questionID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewInternalError(err.Error(), corrID))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"mappings": list})
}

// Delete removes all mappings of one question.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	if _, ok := pathInt(w, r, "surveyId", corrID); !ok {
		return
	}
	questionID, ok := pathInt(w, r, "questionId", corrID)
	if !ok {
		return
	}

	if err := h.mappings.DeleteMappings(r.Context(), questionID); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewInternalError(err.Error(), corrID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Log lists a survey's sync log entries, newest first. An optional limit query
// parameter caps the result.
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	surveyID, ok := pathInt(w, r, "surveyId", corrID)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.WriteError(w, http.StatusBadRequest,
				api.NewValidationError("limit must be a non-negative integer", corrID))
			return
		}
		limit = n
	}

	entries, err := h.syncLog.ListBySurvey(r.Context(), surveyID, limit)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewInternalError(err.Error(), corrID))
		return
	}

	results := make([]any, len(entries))
	for i := range entries {
		results[i] = entries[i]
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}

// Stats returns a survey's aggregate sync counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	surveyID, ok := pathInt(w, r, "surveyId", corrID)
	if !ok {
		return
	}

	stats, err := h.syncLog.Stats(r.Context(), surveyID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewInternalError(err.Error(), corrID))
		return
	}
	api.WriteJSON(w, http.StatusOK, stats)
}

// pathInt parses a positive integer path segment, writing a validation error
// and reporting ok=false when it is malformed.
func pathInt(w http.ResponseWriter, r *http.Request, name, corrID string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n <= 0 {
		api.WriteError(w, http.StatusBadRequest,
			api.NewValidationError(name+" must be a positive integer", corrID))
		return 0, false
	}
	return n, true
}

// isInputError reports whether a store failure was caused by the caller's
// document rather than the database.
func isInputError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "parse mapping document") ||
		strings.Contains(msg, "UNIQUE constraint")
}
