// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/stashd/stashd/internal/auth"
	"github.com/stashd/stashd/internal/store"
	"github.com/stashd/stashd/pkg/errutil"
)

// minPasswordLength is the minimum accepted password length on creation.
const minPasswordLength = 8

type createUserRequest struct {
	Name     string `json:"name"`
	Identity string `json:"identity"`

	// Password is optional; an account created without one cannot log in
	// with a password until an administrator sets one.
	Password string `json:"password,omitempty"`
}

// userResponse is the administrative view of a user. The password hash
// never leaves the server.
type userResponse struct {
	ID        ulid.ULID `json:"id"`
	Name      string    `json:"name"`
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Identity:  u.Identity,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// handleCreateUser creates a user account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Identity == "" {
		writeBadRequest(w, "name and identity are required")
		return
	}
	if req.Password != "" && len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	var passwordHash *string
	if req.Password != "" {
		hash, err := s.hasher.Hash(r.Context(), req.Password)
		if err != nil {
			errutil.LogError(s.logger, "hash password failed", err)
			writeInternalError(w, "failed to create user")
			return
		}
		passwordHash = &hash
	}

	user, err := auth.NewUser(req.Name, req.Identity, passwordHash)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.users.Create(r.Context(), user); err != nil {
		if store.IsUniqueViolation(err) {
			writeConflict(w, "identity already exists")
			return
		}
		errutil.LogError(s.logger, "create user failed", err)
		writeInternalError(w, "failed to create user")
		return
	}

	s.logger.InfoContext(r.Context(), "user created",
		"user_id", user.ID.String(),
		"identity", user.Identity,
	)
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	users, err := s.users.List(r.Context())
	if err != nil {
		errutil.LogError(s.logger, "list users failed", err)
		writeInternalError(w, "failed to list users")
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = newUserResponse(u)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": resp,
		"count": len(resp),
	})
}

// handleGetUser returns a single user by ID.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "malformed user id")
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		errutil.LogError(s.logger, "get user failed", err)
		writeInternalError(w, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// handleDeleteUser removes a user account. Memberships cascade, so sessions
// already issued for the user stop resolving at the whoami step.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "malformed user id")
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		errutil.LogError(s.logger, "delete user failed", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	s.logger.InfoContext(r.Context(), "user deleted", "user_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}
