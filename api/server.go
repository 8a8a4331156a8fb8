/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Sessions:   Resolves bearer tokens to identities

ROUTE GROUPS:
  /api/auth/*        Login and logout (public)
  /api/attendance/*  Check-in / check-out / present list (any session)
  /api/children/*    Per-child record queries (any session)
  /api/admin/*       Corrections, registry and settings (staff; staff
                     accounts themselves admin-only)
  /metrics           Prometheus scrape endpoint

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/auth.go: session middleware and role guards
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/littlepine/timekeeper/auth"
)

// NewRouter creates a new router with all routes configured. metricsHandler
// serves /metrics and may be nil to disable the endpoint.
func NewRouter(h *Handler, metricsHandler http.Handler) *chi.Mux {
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
	r.Use(h.Auth.Middleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/parent/login", h.ParentLogin)
			r.Post("/staff/login", h.StaffLogin)
			r.With(auth.RequireLogin).Post("/logout", h.Logout)
		})

		// Attendance routes (any logged-in session)
		r.Route("/attendance", func(r chi.Router) {
			r.Use(auth.RequireLogin)
			r.Post("/checkins", h.CheckIn)
			r.Post("/checkouts", h.CheckOut)
			r.Get("/present", h.ListPresent)
		})

		// Per-child queries (parents restricted to their own children)
		r.Route("/children", func(r chi.Router) {
			r.Use(auth.RequireLogin)
			r.Get("/{id}/records", h.GetChildRecords)
			r.Get("/{id}/report", h.GetChildReport)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireStaff)

			r.Route("/records", func(r chi.Router) {
				r.Post("/", h.AddRecord)
				r.Put("/{month}/{id}", h.EditTimes)
			})

			r.Route("/families", func(r chi.Router) {
				r.Get("/", h.ListFamilies)
				r.Post("/", h.CreateFamily)
				r.Put("/{id}", h.UpdateFamily)
				r.Delete("/{id}", h.DeleteFamily)
				r.Post("/{id}/children", h.AddChild)
				r.Put("/{id}/children/{childID}", h.UpdateChild)
				r.Delete("/{id}/children/{childID}", h.DeleteChild)
			})

			r.Route("/staff", func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/", h.ListStaff)
				r.Post("/", h.CreateStaff)
				r.Put("/{id}", h.UpdateStaff)
				r.Delete("/{id}", h.DeleteStaff)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", h.GetSettings)
				r.Put("/", h.UpdateSettings)
			})
		})
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	return r
}
