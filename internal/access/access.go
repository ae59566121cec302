// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

// Package access provides authorization for Stashd.
//
// Authentication (who the subject is) lives in the auth package; this
// package answers what an authenticated subject may do. The AuthContext is
// an immutable snapshot taken from a validated session token: one subject,
// one organization, one role set. All checks are pure functions over that
// snapshot; no check performs I/O.
package access

import (
	"context"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/stashd/stashd/internal/auth"
)

// AuthContext is the resolved identity of an authenticated request. It
// scopes the subject to exactly one organization; cross-tenant requests
// need a fresh login or organization selection.
type AuthContext struct {
	SubjectID      ulid.ULID
	Identity       string
	OrganizationID ulid.ULID
	Roles          []auth.Role
}

// NewAuthContext builds an AuthContext from validated session claims.
func NewAuthContext(claims *auth.SessionClaims) AuthContext {
	return AuthContext{
		SubjectID:      claims.SubjectID,
		Identity:       claims.Identity,
		OrganizationID: claims.OrganizationID,
		Roles:          claims.Roles,
	}
}

// HasRole reports whether the subject holds the role in its current
// organization. Roles never span organizations.
func (ac AuthContext) HasRole(role auth.Role) bool {
	return slices.Contains(ac.Roles, role)
}

// IsAdmin reports whether the subject holds ADMIN in its current organization.
func (ac AuthContext) IsAdmin() bool {
	return ac.HasRole(auth.RoleAdmin)
}

// HasOrgAccess reports whether the subject's session is scoped to orgID.
func (ac AuthContext) HasOrgAccess(orgID ulid.ULID) bool {
	return ac.OrganizationID == orgID
}

// Gate is the authorization decision point for protected operations.
// Implementations must deny by default: an absent or malformed AuthContext
// always fails.
type Gate interface {
	// RequireRole returns nil if the context's subject holds the role,
	// ErrUnauthenticated if no subject is resolved, ErrForbidden otherwise.
	RequireRole(ctx context.Context, role auth.Role) error

	// RequireAdmin is RequireRole(ctx, auth.RoleAdmin).
	RequireAdmin(ctx context.Context) error
}

// StaticGate decides from the AuthContext carried in the request context.
// System contexts (seeding, migrations) bypass role checks.
type StaticGate struct{}

// NewStaticGate creates the default Gate.
func NewStaticGate() *StaticGate {
	return &StaticGate{}
}

// RequireRole implements Gate.
func (g *StaticGate) RequireRole(ctx context.Context, role auth.Role) error {
	if IsSystemContext(ctx) {
		return nil
	}
	ac, ok := FromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if !ac.HasRole(role) {
		return ErrForbidden
	}
	return nil
}

// RequireAdmin implements Gate.
func (g *StaticGate) RequireAdmin(ctx context.Context) error {
	return g.RequireRole(ctx, auth.RoleAdmin)
}

var _ Gate = (*StaticGate)(nil)
