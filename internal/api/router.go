// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Login entry points carry their own credentials; no session required.
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/select-organization", s.handleSelectOrganization)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/whoami", s.handleWhoAmI)

			// Administrative routes. Handlers enforce the ADMIN role through
			// the gate so role decisions stay in one place.
			r.Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Delete("/", s.handleDeleteUser)
				})
			})

			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", s.handleListOrganizations)
				r.Post("/", s.handleCreateOrganization)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetOrganization)
					r.Delete("/", s.handleDeleteOrganization)

					r.Put("/members/{userID}", s.handleSetMembership)
					r.Delete("/members/{userID}", s.handleRemoveMembership)
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
