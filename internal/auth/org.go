// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is a closed set of membership roles. Only values in this set may be
// signed into tokens; free-form role strings are rejected everywhere.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a string into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Errorf("unknown role %q", s)
	}
	return r, nil
}

// ValidateRoles checks a role set: non-empty, all values known, no duplicates.
func ValidateRoles(roles []Role) error {
	if len(roles) == 0 {
		return oops.Code("AUTH_INVALID_ROLE").Errorf("role set cannot be empty")
	}
	seen := make(map[Role]bool, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			return oops.Code("AUTH_INVALID_ROLE").With("role", string(r)).Errorf("unknown role %q", string(r))
		}
		if seen[r] {
			return oops.Code("AUTH_INVALID_ROLE").With("role", string(r)).Errorf("duplicate role %q", string(r))
		}
		seen[r] = true
	}
	return nil
}

// Organization is the hard tenant-isolation boundary.
type Organization struct {
	ID          ulid.ULID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOrganization creates a validated Organization.
func NewOrganization(name, description string) (*Organization, error) {
	if name == "" {
		return nil, oops.Code("AUTH_INVALID_ORG_NAME").Errorf("organization name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return nil, oops.Code("AUTH_INVALID_ORG_NAME").
			With("max", MaxNameLength).
			Errorf("organization name must be at most %d characters", MaxNameLength)
	}

	now := time.Now()
	return &Organization{
		ID:          ulid.Make(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Membership links a user to an organization with a role set.
// Unique per (user, organization).
type Membership struct {
	UserID         ulid.ULID
	OrganizationID ulid.ULID
	Roles          []Role
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrgMembership is the membership view used during login: the organization's
// display data joined with the subject's roles in it.
type OrgMembership struct {
	OrganizationID          ulid.ULID
	OrganizationName        string
	OrganizationDescription string
	Roles                   []Role
}

// OrganizationRepository manages organization persistence.
type OrganizationRepository interface {
	// Create stores a new organization.
	Create(ctx context.Context, org *Organization) error

	// GetByID retrieves an organization by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Organization, error)

	// List returns all organizations ordered by name.
	List(ctx context.Context) ([]*Organization, error)

	// Delete removes an organization. Memberships cascade at the schema level.
	Delete(ctx context.Context, id ulid.ULID) error
}

// MembershipRepository manages the (user, organization, roles) relation.
type MembershipRepository interface {
	// Set creates or replaces the membership for (userID, orgID).
	Set(ctx context.Context, userID, orgID ulid.ULID, roles []Role) error

	// Remove deletes the membership for (userID, orgID).
	Remove(ctx context.Context, userID, orgID ulid.ULID) error

	// ListByUser returns the subject's memberships with organization display
	// data, ordered by organization name.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]OrgMembership, error)
}
