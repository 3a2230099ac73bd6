package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// EventHandler serves the scheduler event log to pollers.
type EventHandler struct {
	events EventSource
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(events EventSource) *EventHandler {
	return &EventHandler{events: events}
}

// List handles the request for events after the ?since= cursor.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := listEvents(w, r, h.events)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		http.Error(w, "Failed to retrieve events: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
