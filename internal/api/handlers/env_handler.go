package handlers

import (
	"net/http"

	"github.com/isdelr/schedpanel/internal/services"
)

// EnvHandler serves the panel's environment description.
type EnvHandler struct {
	env services.EnvironmentServiceProvider
}

// NewEnvHandler creates a new EnvHandler.
func NewEnvHandler(env services.EnvironmentServiceProvider) *EnvHandler {
	return &EnvHandler{env: env}
}

func (h *EnvHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.env.GetEnvironmentData(r.Context()))
}
