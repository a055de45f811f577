package sync

import (
	"context"
	"fmt"
)

// EventKind names one host-engine event the service reacts to.
type EventKind string

// EventSurveyComplete fires when a respondent submits a survey.
const EventSurveyComplete EventKind = "survey_complete"

// Event is the notification payload. The full response is fetched separately;
// the event carries identifiers only.
type Event struct {
	SurveyID   int `json:"surveyId"`
	ResponseID int `json:"responseId"`
}

// Handler processes one event.
type Handler func(ctx context.Context, ev Event) error

// Registry maps event kinds to handlers. It is built explicitly at startup;
// dispatching an unregistered kind is an error.
type Registry struct {
	handlers map[EventKind]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[EventKind]Handler)}
}

// Register binds a handler to an event kind, replacing any previous binding.
func (r *Registry) Register(kind EventKind, h Handler) {
	r.handlers[kind] = h
}

// Dispatch invokes the handler registered for the kind.
func (r *Registry) Dispatch(ctx context.Context, kind EventKind, ev Event) error {
	h, ok := r.handlers[kind]
	if !ok {
		return fmt.Errorf("no handler registered for event %q", kind)
	}
	return h(ctx, ev)
}
