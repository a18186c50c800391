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

ROUTE GROUPS:
  /api/slots/*          Public availability
  /api/reservations/*   Hold protocol (reserve / complete / cancel)
  /api/admin/*          Admin operations, behind a JWT bearer token

ADMIN AUTH:
  HS256 bearer tokens signed with the ADMIN_JWT_SECRET environment value.
  An empty secret disables the admin surface entirely rather than leaving
  it open.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, adminSecret []byte) *chi.Mux {
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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Public availability
		r.Get("/slots/{date}", h.GetAvailability)

		// Hold protocol
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/reserve", h.Reserve)
			r.Post("/complete", h.Complete)
			r.Post("/cancel", h.CancelHold)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin(adminSecret))

			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", h.ListBookings)
				r.Get("/{id}", h.GetBooking)
				r.Post("/{id}/status", h.UpdateBookingStatus)
				r.Get("/{id}/payments", h.ListPayments)
			})

			r.Route("/memberships", func(r chi.Router) {
				r.Get("/{id}", h.GetMembership)
				r.Get("/{id}/usage", h.ListUsage)
				r.Post("/{id}/recalculate", h.Recalculate)
				r.Post("/{id}/rollover", h.Rollover)
			})

			r.Put("/schedule", h.ReplaceSchedule)
			r.Post("/holds/sweep", h.SweepHolds)
		})
	})

	return r
}

// requireAdmin validates an HS256 bearer token against the shared secret.
func requireAdmin(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				writeError(w, http.StatusForbidden, "Admin API disabled", nil)
				return
			}

			auth := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}

			_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
