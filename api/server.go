/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for frontend
  5. Authenticate: Bearer token → auth.Actor (all /api routes)

ROUTE GROUPS:
  /healthz                 Liveness (public)
  /api/transfers/*         Transfer reports and review
  /api/dues/*              Dues
  /api/notifications/*     Inbox and live stream
  /api/events/{kind}       Staff-originated events
  /api/scenarios/*         Demo scenarios (only when enabled)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authenticate
  - cmd/respay/serve.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/resident-payments/auth"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	// Scenarios mounts the demo data endpoints.
	Scenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, tokens *auth.Tokens, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(tokens))

		// Transfer routes
		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", h.ListTransfers)
			r.Post("/", h.SubmitTransfer)
			r.Get("/{id}", h.GetTransfer)
			r.Post("/{id}/review", h.ReviewTransfer)
			r.Post("/{id}/complete", h.CompleteTransfer)
		})

		// Due routes
		r.Route("/dues", func(r chi.Router) {
			r.Get("/", h.ListDues)
			r.Post("/", h.CreateDue)
			r.Get("/{id}", h.GetDue)
		})

		// Notification routes
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread-count", h.UnreadCount)
			r.Get("/stream", h.StreamNotifications)
			r.Post("/read-all", h.MarkAllRead)
			r.Patch("/{id}", h.MarkNotificationRead)
			r.Delete("/{id}", h.DeleteNotification)
		})

		r.Post("/events/{kind}", h.PublishEvent)

		// Scenario routes
		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		}
	})

	return r
}
