package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/schedpanel/internal/models"
	"github.com/isdelr/schedpanel/internal/services"
)

// JobHandler handles job queries and commands. Jobs are addressed as /jobs/{group}/{name}.
type JobHandler struct {
	clerk    services.ClerkServiceProvider
	commands services.CommandServiceProvider
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(clerk services.ClerkServiceProvider, commands services.CommandServiceProvider) *JobHandler {
	return &JobHandler{clerk: clerk, commands: commands}
}

// Get handles the request for a job's details.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, group := chi.URLParam(r, "name"), chi.URLParam(r, "group")
	details, err := h.clerk.GetJobDetailsData(r.Context(), name, group)
	if err != nil {
		log.Error().Err(err).Str("job", group+"."+name).Msg("Failed to retrieve job details")
		http.Error(w, "Failed to retrieve job details: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if details == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *JobHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.PauseJob)
}

func (h *JobHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.ResumeJob)
}

func (h *JobHandler) Execute(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.ExecuteJob)
}

func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.DeleteJob)
}

func (h *JobHandler) command(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, name, group string) (models.SchedulerData, error)) {
	data, err := fn(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "group"))
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}
