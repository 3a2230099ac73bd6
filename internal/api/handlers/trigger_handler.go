package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/schedpanel/internal/models"
	"github.com/isdelr/schedpanel/internal/services"
)

// TriggerHandler handles trigger queries and commands. Triggers are addressed as
// /triggers/{group}/{name}.
type TriggerHandler struct {
	clerk    services.ClerkServiceProvider
	commands services.CommandServiceProvider
}

// NewTriggerHandler creates a new TriggerHandler.
func NewTriggerHandler(clerk services.ClerkServiceProvider, commands services.CommandServiceProvider) *TriggerHandler {
	return &TriggerHandler{clerk: clerk, commands: commands}
}

// Get handles the request for a trigger's details.
func (h *TriggerHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, group := chi.URLParam(r, "name"), chi.URLParam(r, "group")
	details, err := h.clerk.GetTriggerDetailsData(r.Context(), name, group)
	if err != nil {
		log.Error().Err(err).Str("trigger", group+"."+name).Msg("Failed to retrieve trigger details")
		http.Error(w, "Failed to retrieve trigger details: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if details == nil {
		http.Error(w, "Trigger not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// Add handles scheduling a new trigger for an existing job.
func (h *TriggerHandler) Add(w http.ResponseWriter, r *http.Request) {
	var input models.AddTriggerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	data, err := h.commands.AddTrigger(r.Context(), input)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, data)
}

func (h *TriggerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.PauseTrigger)
}

func (h *TriggerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.ResumeTrigger)
}

func (h *TriggerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.DeleteTrigger)
}

func (h *TriggerHandler) command(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, name, group string) (models.SchedulerData, error)) {
	data, err := fn(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "group"))
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}
