package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/isdelr/schedpanel/internal/api/handlers"
	"github.com/isdelr/schedpanel/internal/auth"
	"github.com/isdelr/schedpanel/internal/services"
	"github.com/isdelr/schedpanel/internal/websocket"
)

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Clerk    services.ClerkServiceProvider
	Commands services.CommandServiceProvider
	Env      services.EnvironmentServiceProvider
	Events   handlers.EventSource
	Feed     *websocket.Hub

	// Auth guards the command routes when set.
	Auth *auth.Authenticator
	// ReadOnly leaves the command routes out entirely.
	ReadOnly bool

	CORSOrigins []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", handlers.DegradedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	envHandler := handlers.NewEnvHandler(deps.Env)
	eventHandler := handlers.NewEventHandler(deps.Events)
	schedulerHandler := handlers.NewSchedulerHandler(deps.Clerk, deps.Commands, deps.Events)
	groupHandler := handlers.NewGroupHandler(deps.Commands)
	jobHandler := handlers.NewJobHandler(deps.Clerk, deps.Commands)
	triggerHandler := handlers.NewTriggerHandler(deps.Clerk, deps.Commands)
	feedHandler := handlers.NewFeedHandler(deps.Feed, deps.Events, handlers.AllowOrigins(origins))

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/env", envHandler.Get)
		r.Get("/events", eventHandler.List)
		r.Get("/ws", feedHandler.Serve)

		r.Get("/scheduler", schedulerHandler.GetData)
		r.Get("/scheduler/details", schedulerHandler.GetDetails)
		r.Get("/scheduler/job-types", schedulerHandler.GetJobTypes)
		r.Get("/jobs/{group}/{name}", jobHandler.Get)
		r.Get("/triggers/{group}/{name}", triggerHandler.Get)

		if deps.ReadOnly {
			return
		}

		r.Group(func(r chi.Router) {
			if deps.Auth != nil {
				r.Use(deps.Auth.Middleware())
			}

			r.Post("/scheduler/start", schedulerHandler.Start)
			r.Post("/scheduler/standby", schedulerHandler.Standby)
			r.Post("/scheduler/stop", schedulerHandler.Stop)
			r.Post("/scheduler/pause", schedulerHandler.PauseAll)
			r.Post("/scheduler/resume", schedulerHandler.ResumeAll)

			r.Post("/groups/{group}/pause", groupHandler.Pause)
			r.Post("/groups/{group}/resume", groupHandler.Resume)
			r.Delete("/groups/{group}", groupHandler.Delete)

			r.Post("/jobs/{group}/{name}/pause", jobHandler.Pause)
			r.Post("/jobs/{group}/{name}/resume", jobHandler.Resume)
			r.Post("/jobs/{group}/{name}/execute", jobHandler.Execute)
			r.Delete("/jobs/{group}/{name}", jobHandler.Delete)

			r.Post("/triggers", triggerHandler.Add)
			r.Post("/triggers/{group}/{name}/pause", triggerHandler.Pause)
			r.Post("/triggers/{group}/{name}/resume", triggerHandler.Resume)
			r.Delete("/triggers/{group}/{name}", triggerHandler.Delete)
		})
	})

	return r
}
