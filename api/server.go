/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

SECURITY NOTE:
  No authentication middleware. The engine sits behind the union portal's
  gateway, which authenticates.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/calendar", h.GetCalendar)
			r.Get("/{id}/entitlement", h.GetEntitlement)
		})

		// Group routes
		r.Route("/groups", func(r chi.Router) {
			r.Get("/{id}/admission", h.CheckAdmission)
			r.Get("/{id}/blocks", h.ListGroupBlocks)
			r.Get("/{id}/blocks/current", h.CurrentBlock)
		})

		// Reservation routes
		r.Post("/reservations", h.CreateReservation)

		// Block routes
		r.Post("/blocks/transfers", h.TransferAssignment)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/auto-assign", h.AutoAssign)
			r.Delete("/auto-assign/{year}", h.RevertAutoAssign)
			r.Post("/blocks/generate", h.GenerateBlocks)
			r.Post("/blocks/approve", h.ApproveBlocks)
			r.Delete("/blocks/{groupID}/{year}", h.RegenerateBlocks)
			r.Get("/blocks/non-responders", h.NonResponders)
			r.Post("/sweep", h.RunSweep)
		})

		// Calendar configuration
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.UpdateRule)
		})
	})

	return r
}
