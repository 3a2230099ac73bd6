package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/schedpanel/internal/models"
	"github.com/isdelr/schedpanel/internal/services"
)

// SchedulerHandler handles scheduler level queries and commands.
type SchedulerHandler struct {
	clerk    services.ClerkServiceProvider
	commands services.CommandServiceProvider
	events   EventSource
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(clerk services.ClerkServiceProvider, commands services.CommandServiceProvider, events EventSource) *SchedulerHandler {
	return &SchedulerHandler{clerk: clerk, commands: commands, events: events}
}

// GetData handles the request for the scheduler snapshot, with the events after ?since=.
func (h *SchedulerHandler) GetData(w http.ResponseWriter, r *http.Request) {
	data, err := h.clerk.GetSchedulerData(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build scheduler snapshot")
		http.Error(w, "Failed to retrieve scheduler data: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.respond(w, r, data)
}

// GetDetails handles the request for the raw scheduler metadata.
func (h *SchedulerHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.clerk.GetSchedulerDetails(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve scheduler details")
		http.Error(w, "Failed to retrieve scheduler details: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// GetJobTypes handles the request for the types of all scheduled jobs.
func (h *SchedulerHandler) GetJobTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.clerk.GetScheduledJobTypes(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve job types")
		http.Error(w, "Failed to retrieve job types: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *SchedulerHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.StartScheduler)
}

func (h *SchedulerHandler) Standby(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.StandbyScheduler)
}

func (h *SchedulerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.StopScheduler)
}

func (h *SchedulerHandler) PauseAll(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.PauseScheduler)
}

func (h *SchedulerHandler) ResumeAll(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.ResumeScheduler)
}

func (h *SchedulerHandler) command(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (models.SchedulerData, error)) {
	data, err := fn(r.Context())
	if err != nil {
		writeCommandError(w, err)
		return
	}
	h.respond(w, r, data)
}

func (h *SchedulerHandler) respond(w http.ResponseWriter, r *http.Request, data models.SchedulerData) {
	list, err := listEvents(w, r, h.events)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		http.Error(w, "Failed to retrieve events: "+err.Error(), http.StatusInternalServerError)
		return
	}
	data.Events = list
	writeJSON(w, http.StatusOK, data)
}
