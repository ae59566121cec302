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

	"github.com/stashd/stashd/internal/access"
	"github.com/stashd/stashd/internal/auth"
	"github.com/stashd/stashd/internal/store"
	"github.com/stashd/stashd/pkg/errutil"
)

type createOrganizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type setMembershipRequest struct {
	Roles []string `json:"roles"`
}

type organizationResponse struct {
	ID          ulid.ULID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newOrganizationResponse(o *auth.Organization) organizationResponse {
	return organizationResponse{
		ID:          o.ID,
		Name:        o.Name,
		Description: o.Description,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

// handleCreateOrganization creates an organization.
func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req createOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	org, err := auth.NewOrganization(req.Name, req.Description)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.orgs.Create(r.Context(), org); err != nil {
		if store.IsUniqueViolation(err) {
			writeConflict(w, "organization name already exists")
			return
		}
		errutil.LogError(s.logger, "create organization failed", err)
		writeInternalError(w, "failed to create organization")
		return
	}

	s.logger.InfoContext(r.Context(), "organization created",
		"organization_id", org.ID.String(),
		"name", org.Name,
	)
	writeJSON(w, http.StatusCreated, newOrganizationResponse(org))
}

// handleListOrganizations returns all organizations.
func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	orgs, err := s.orgs.List(r.Context())
	if err != nil {
		errutil.LogError(s.logger, "list organizations failed", err)
		writeInternalError(w, "failed to list organizations")
		return
	}

	resp := make([]organizationResponse, len(orgs))
	for i, o := range orgs {
		resp[i] = newOrganizationResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"organizations": resp,
		"count":         len(resp),
	})
}

// handleGetOrganization returns a single organization by ID. Members may
// read the organization their session is scoped to; any other organization
// requires the ADMIN role.
func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "malformed organization id")
		return
	}

	ac, ok := access.FromContext(r.Context())
	if !ok || !ac.HasOrgAccess(id) {
		if !s.requireAdmin(w, r) {
			return
		}
	}

	org, err := s.orgs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeNotFound(w, "organization not found")
			return
		}
		errutil.LogError(s.logger, "get organization failed", err)
		writeInternalError(w, "failed to get organization")
		return
	}

	writeJSON(w, http.StatusOK, newOrganizationResponse(org))
}

// handleDeleteOrganization removes an organization and, by cascade, every
// membership in it.
func (s *Server) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "malformed organization id")
		return
	}

	if err := s.orgs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeNotFound(w, "organization not found")
			return
		}
		errutil.LogError(s.logger, "delete organization failed", err)
		writeInternalError(w, "failed to delete organization")
		return
	}

	s.logger.InfoContext(r.Context(), "organization deleted", "organization_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// handleSetMembership creates or replaces a user's role set in an
// organization.
func (s *Server) handleSetMembership(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	orgID, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "malformed organization id")
		return
	}
	userID, err := ulid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeBadRequest(w, "malformed user id")
		return
	}

	var req setMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	roles := make([]auth.Role, 0, len(req.Roles))
	for _, raw := range req.Roles {
		role, err := auth.ParseRole(raw)
		if err != nil {
			writeBadRequest(w, "unknown role: "+raw)
			return
		}
		roles = append(roles, role)
	}
	if err := auth.ValidateRoles(roles); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.memberships.Set(r.Context(), userID, orgID, roles); err != nil {
		if store.IsForeignKeyViolation(err) {
			writeNotFound(w, "user or organization not found")
			return
		}
		errutil.LogError(s.logger, "set membership failed", err)
		writeInternalError(w, "failed to set membership")
		return
	}

	s.logger.InfoContext(r.Context(), "membership set",
		"user_id", userID.String(),
		"organization_id", orgID.String(),
		"roles", roles,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         userID,
		"organization_id": orgID,
		"roles":           roles,
	})
}

// handleRemoveMembership deletes a user's membership in an organization.
// Sessions already issued for that organization keep their role snapshot
// until expiry; only new logins observe the removal.
func (s *Server) handleRemoveMembership(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	orgID, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "malformed organization id")
		return
	}
	userID, err := ulid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeBadRequest(w, "malformed user id")
		return
	}

	if err := s.memberships.Remove(r.Context(), userID, orgID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeNotFound(w, "membership not found")
			return
		}
		errutil.LogError(s.logger, "remove membership failed", err)
		writeInternalError(w, "failed to remove membership")
		return
	}

	s.logger.InfoContext(r.Context(), "membership removed",
		"user_id", userID.String(),
		"organization_id", orgID.String(),
	)
	w.WriteHeader(http.StatusNoContent)
}
