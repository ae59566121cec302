// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/stashd/stashd/internal/access"
	"github.com/stashd/stashd/internal/auth"
	"github.com/stashd/stashd/internal/observability"
	"github.com/stashd/stashd/pkg/errutil"
)

type loginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`

	// OrganizationID skips the selection step when the caller already knows
	// which organization it wants.
	OrganizationID *string `json:"organization_id,omitempty"`
}

type selectOrganizationRequest struct {
	FollowOnToken  string `json:"follow_on_token"`
	OrganizationID string `json:"organization_id"`
}

type userPayload struct {
	ID       ulid.ULID `json:"id"`
	Name     string    `json:"name"`
	Identity string    `json:"identity"`
}

type organizationPayload struct {
	ID          ulid.ULID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

type sessionResponse struct {
	Token        string              `json:"token,omitempty"`
	TokenType    string              `json:"token_type,omitempty"`
	ExpiresIn    int64               `json:"expires_in,omitempty"`
	User         userPayload         `json:"user"`
	Organization organizationPayload `json:"organization"`
	Roles        []auth.Role         `json:"roles"`
}

type membershipPayload struct {
	OrganizationID ulid.ULID   `json:"organization_id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Roles          []auth.Role `json:"roles"`
}

type selectionResponse struct {
	SelectionRequired bool                `json:"selection_required"`
	Organizations     []membershipPayload `json:"organizations"`
	FollowOnToken     string              `json:"follow_on_token"`
}

// handleLogin authenticates a subject. The response is either a session
// (single membership or explicit organization) or a selection list with a
// follow-on token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Identity == "" || req.Password == "" {
		writeBadRequest(w, "identity and password are required")
		return
	}

	var orgID *ulid.ULID
	if req.OrganizationID != nil {
		parsed, err := ulid.Parse(*req.OrganizationID)
		if err != nil {
			writeBadRequest(w, "malformed organization_id")
			return
		}
		orgID = &parsed
	}

	result, err := s.auth.Login(r.Context(), req.Identity, req.Password, orgID)
	if err != nil {
		s.writeLoginError(w, err)
		return
	}

	if result.Selection != nil {
		s.countLogin(observability.LoginOutcomeSelectionRequired)
		orgs := make([]membershipPayload, len(result.Selection.Organizations))
		for i, m := range result.Selection.Organizations {
			orgs[i] = membershipPayload{
				OrganizationID: m.OrganizationID,
				Name:           m.OrganizationName,
				Description:    m.OrganizationDescription,
				Roles:          m.Roles,
			}
		}
		writeJSON(w, http.StatusOK, selectionResponse{
			SelectionRequired: true,
			Organizations:     orgs,
			FollowOnToken:     result.Selection.FollowOnToken,
		})
		return
	}

	s.countLogin(observability.LoginOutcomeSession)
	writeJSON(w, http.StatusOK, newSessionResponse(result.Session))
}

// handleSelectOrganization exchanges a follow-on token plus an organization
// choice for a session.
func (s *Server) handleSelectOrganization(w http.ResponseWriter, r *http.Request) {
	var req selectOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.FollowOnToken == "" || req.OrganizationID == "" {
		writeBadRequest(w, "follow_on_token and organization_id are required")
		return
	}

	orgID, err := ulid.Parse(req.OrganizationID)
	if err != nil {
		writeBadRequest(w, "malformed organization_id")
		return
	}

	session, err := s.auth.SelectOrganization(r.Context(), req.FollowOnToken, orgID)
	if err != nil {
		s.writeLoginError(w, err)
		return
	}

	s.countLogin(observability.LoginOutcomeSession)
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// handleWhoAmI returns the profile behind the current session. Roles come
// from the token, so no membership lookup happens here.
func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	ac, ok := access.FromContext(r.Context())
	if !ok {
		writeTokenError(w)
		return
	}

	result, err := s.auth.WhoAmI(r.Context(), ac.SubjectID, ac.OrganizationID, ac.Roles)
	if err != nil {
		if isTokenError(err) {
			writeTokenError(w)
			return
		}
		errutil.LogError(s.logger, "whoami failed", err)
		writeInternalError(w, "failed to resolve session")
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(result))
}

// writeLoginError maps login-flow errors to responses. Credential failures
// stay a uniform 401; membership failures are 403 so a caller can tell a
// bad password from a missing grant, which is not an enumeration risk once
// the credentials have been proven.
func (s *Server) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.countLogin(observability.LoginOutcomeInvalid)
		writeUnauthorized(w, "invalid credentials")
	case errors.Is(err, auth.ErrNoOrganizationAccess):
		s.countLogin(observability.LoginOutcomeNoOrgAccess)
		writeError(w, http.StatusForbidden, "no_organization", "no organization access")
	case errors.Is(err, auth.ErrOrgAccessDenied):
		s.countLogin(observability.LoginOutcomeDenied)
		writeError(w, http.StatusForbidden, "org_access_denied", "organization access denied")
	case isTokenError(err):
		s.countTokenValidation("follow_on", "invalid")
		writeTokenError(w)
	default:
		s.countLogin(observability.LoginOutcomeError)
		errutil.LogError(s.logger, "login failed", err)
		writeInternalError(w, "login failed")
	}
}

func (s *Server) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func newSessionResponse(session *auth.SessionResult) sessionResponse {
	resp := sessionResponse{
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		User: userPayload{
			ID:       session.User.ID,
			Name:     session.User.Name,
			Identity: session.User.Identity,
		},
		Organization: organizationPayload{
			ID:          session.Organization.ID,
			Name:        session.Organization.Name,
			Description: session.Organization.Description,
		},
		Roles: session.Roles,
	}
	if session.Token != "" {
		resp.TokenType = "Bearer"
	}
	return resp
}
