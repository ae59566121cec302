// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package postgres

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stashd/stashd/internal/auth"
)

// MembershipRepository implements auth.MembershipRepository using PostgreSQL.
// Roles are stored as a text[] column; values are validated before writes and
// after reads so a hand-edited row cannot smuggle an unknown role into a token.
type MembershipRepository struct {
	pool poolIface
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(pool poolIface) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// Set creates or replaces the membership for (userID, orgID).
func (r *MembershipRepository) Set(ctx context.Context, userID, orgID ulid.ULID, roles []auth.Role) error {
	if err := auth.ValidateRoles(roles); err != nil {
		return err
	}

	roleStrs := make([]string, len(roles))
	for i, role := range roles {
		roleStrs[i] = string(role)
	}

	now := time.Now()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO memberships (user_id, organization_id, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, organization_id)
		DO UPDATE SET roles = $3, updated_at = $4
	`, userID.String(), orgID.String(), roleStrs, now)
	if err != nil {
		return oops.Code("MEMBERSHIP_SET_FAILED").
			With("operation", "upsert membership").
			With("user_id", userID.String()).
			With("organization_id", orgID.String()).
			Wrap(err)
	}
	return nil
}

// Remove deletes the membership for (userID, orgID).
func (r *MembershipRepository) Remove(ctx context.Context, userID, orgID ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM memberships WHERE user_id = $1 AND organization_id = $2
	`, userID.String(), orgID.String())
	if err != nil {
		return oops.Code("MEMBERSHIP_REMOVE_FAILED").
			With("operation", "delete membership").
			With("user_id", userID.String()).
			With("organization_id", orgID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("MEMBERSHIP_NOT_FOUND").
			With("user_id", userID.String()).
			With("organization_id", orgID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ListByUser returns the subject's memberships joined with organization
// display data, ordered by organization name.
func (r *MembershipRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]auth.OrgMembership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.name, o.description, m.roles
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY o.name
	`, userID.String())
	if err != nil {
		return nil, oops.Code("MEMBERSHIP_LIST_FAILED").
			With("operation", "list memberships").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var memberships []auth.OrgMembership
	for rows.Next() {
		var (
			orgIDStr    string
			name        string
			description string
			roleStrs    []string
		)
		if err := rows.Scan(&orgIDStr, &name, &description, &roleStrs); err != nil {
			return nil, oops.Code("MEMBERSHIP_LIST_FAILED").
				With("operation", "scan membership row").
				With("user_id", userID.String()).
				Wrap(err)
		}

		orgID, err := ulid.Parse(orgIDStr)
		if err != nil {
			return nil, oops.Code("MEMBERSHIP_INVALID_ORG_ID").
				With("operation", "parse organization id").
				With("organization_id", orgIDStr).
				Wrap(err)
		}

		roles := make([]auth.Role, 0, len(roleStrs))
		for _, s := range roleStrs {
			role, err := auth.ParseRole(s)
			if err != nil {
				return nil, oops.Code("MEMBERSHIP_INVALID_ROLE").
					With("organization_id", orgIDStr).
					With("user_id", userID.String()).
					Wrap(err)
			}
			roles = append(roles, role)
		}

		memberships = append(memberships, auth.OrgMembership{
			OrganizationID:          orgID,
			OrganizationName:        name,
			OrganizationDescription: description,
			Roles:                   roles,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("MEMBERSHIP_LIST_FAILED").
			With("operation", "iterate memberships").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return memberships, nil
}

// Compile-time interface check.
var _ auth.MembershipRepository = (*MembershipRepository)(nil)
