package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/isdelr/schedpanel/internal/models"
	"github.com/isdelr/schedpanel/internal/services"
)

// GroupHandler handles commands on whole job groups.
type GroupHandler struct {
	commands services.CommandServiceProvider
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(commands services.CommandServiceProvider) *GroupHandler {
	return &GroupHandler{commands: commands}
}

func (h *GroupHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.PauseGroup)
}

func (h *GroupHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.ResumeGroup)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.commands.DeleteGroup)
}

func (h *GroupHandler) command(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, group string) (models.SchedulerData, error)) {
	data, err := fn(r.Context(), chi.URLParam(r, "group"))
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}
