/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     One zerolog line per request, tagged with the request ID
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend
  5. identify:   Loads the X-User-ID user into the request context

ROUTE GROUPS:
  /api/health               Public
  /api/users (POST)         Public until the first user exists
  /api/*                    Any known user
  /api/users writes         Admin and above
  /api/admin/*              Admin and above

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Identity and access checks
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/crm-engine/visibility"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", UserHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.identify)

		r.Get("/health", h.Health)

		users := h.users()
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.With(requireUser).Get("/", listRecords(h, users))
			r.With(requireUser).Get("/{id}", getRecord(h, users))
			r.With(requireAccess(visibility.Admin)).Put("/{id}", updateRecord(h, users))
			r.With(requireAccess(visibility.Admin)).Delete("/{id}", deleteRecord(h, users))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			mountRecords(r, "/accounts", h, h.accounts())
			mountRecords(r, "/contacts", h, h.contacts())
			mountRecords(r, "/leads", h, h.leads())
			mountRecords(r, "/deals", h, h.deals())
			mountRecords(r, "/tasks", h, h.tasks())
			mountRecords(r, "/recurring-payments", h, h.recurringPayments(), func(r chi.Router) {
				r.Get("/upcoming", h.UpcomingPayments)
			})

			r.Get("/dashboard", h.Dashboard)

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAccess(visibility.Admin))
				r.Post("/reminders/run", h.RunReminders)
				r.Get("/reminders/last", h.LastReminderRun)
			})
		})
	})

	return r
}

// mountRecords adds the CRUD routes for one kind. extra routes are added
// first; static segments win over {id} either way.
func mountRecords[T record](r chi.Router, path string, h *Handler, res resource[T], extra ...func(chi.Router)) {
	r.Route(path, func(r chi.Router) {
		for _, add := range extra {
			add(r)
		}
		r.Get("/", listRecords(h, res))
		r.Post("/", createRecord(h, res))
		r.Get("/{id}", getRecord(h, res))
		r.Put("/{id}", updateRecord(h, res))
		r.Delete("/{id}", deleteRecord(h, res))
	})
}
