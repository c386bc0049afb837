/**
 * @description
 * This file sets up the HTTP router for the lumentix backend. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication and rate limiting.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SponsorshipRoutes creates and returns a new router for the lumentix backend.
func SponsorshipRoutes(h *SponsorshipHandlers, jwtSecret string, limiter RateLimiter, confirmPerMinute int) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("lumentix backend is healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Tier browsing is open to every authenticated role.
		r.Get("/tiers", h.ListTiersHandler)
		r.Get("/tiers/{tierID}", h.GetTierHandler)

		// Tier management is restricted to organizers.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleOrganizer))
			r.Post("/tiers", h.CreateTierHandler)
			r.Put("/tiers/{tierID}", h.UpdateTierHandler)
		})

		// Contribution settlement endpoints.
		r.Post("/contributions/intent", h.CreateIntentHandler)
		r.With(ConfirmRateLimit(limiter, confirmPerMinute)).Post("/contributions/confirm", h.ConfirmContributionHandler)
		r.Get("/contributions/mine", h.ListMyContributionsHandler)
	})

	return r
}
