package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/schedpanel/internal/engine"
	"github.com/isdelr/schedpanel/internal/events"
	"github.com/isdelr/schedpanel/internal/models"
	"github.com/isdelr/schedpanel/internal/services"
)

// EventSource is the cursor-based read side of the event hub.
type EventSource interface {
	List(ctx context.Context, sinceID int64) ([]models.Event, error)
}

// DegradedHeader is set on responses whose events came from the local log only.
const DegradedHeader = "X-Events-Degraded"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// sinceParam reads the ?since= cursor. Anything unparsable is treated as no cursor, which
// replays the whole log.
func sinceParam(r *http.Request) int64 {
	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		return 0
	}
	return since
}

// listEvents fetches events after the cursor. A degraded shared store is flagged, not failed.
func listEvents(w http.ResponseWriter, r *http.Request, source EventSource) ([]models.Event, error) {
	list, err := source.List(r.Context(), sinceParam(r))
	if errors.Is(err, events.ErrDegraded) {
		log.Warn().Err(err).Msg("Serving events from the local log")
		w.Header().Set(DegradedHeader, "true")
		err = nil
	}
	if list == nil {
		list = []models.Event{}
	}
	return list, err
}

// writeCommandError maps scheduler errors to HTTP statuses.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrJobNotFound), errors.Is(err, engine.ErrTriggerNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidCommand), errors.Is(err, engine.ErrInvalidSchedule):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrSchedulerShutdown),
		errors.Is(err, engine.ErrJobExists),
		errors.Is(err, engine.ErrTriggerExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Error().Err(err).Msg("Scheduler command failed")
		http.Error(w, "Command failed: "+err.Error(), http.StatusInternalServerError)
	}
}
