// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stashd/stashd/internal/auth"
)

// OrganizationRepository implements auth.OrganizationRepository using PostgreSQL.
type OrganizationRepository struct {
	pool poolIface
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(pool poolIface) *OrganizationRepository {
	return &OrganizationRepository{pool: pool}
}

// Create stores a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, org *auth.Organization) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		org.ID.String(),
		org.Name,
		org.Description,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ORG_CREATE_FAILED").
			With("operation", "insert organization").
			With("name", org.Name).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an organization by ID.
func (r *OrganizationRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Organization, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id.String())

	org, err := r.scanOrganization(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ORG_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ORG_GET_BY_ID_FAILED").
			With("operation", "get organization by id").
			With("id", id.String()).
			Wrap(err)
	}
	return org, nil
}

// List returns all organizations ordered by name.
func (r *OrganizationRepository) List(ctx context.Context) ([]*auth.Organization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM organizations
		ORDER BY name
	`)
	if err != nil {
		return nil, oops.Code("ORG_LIST_FAILED").
			With("operation", "list organizations").
			Wrap(err)
	}
	defer rows.Close()

	var orgs []*auth.Organization
	for rows.Next() {
		org, err := r.scanOrganization(rows)
		if err != nil {
			return nil, oops.Code("ORG_LIST_FAILED").
				With("operation", "scan organization row").
				Wrap(err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("ORG_LIST_FAILED").
			With("operation", "iterate organizations").
			Wrap(err)
	}
	return orgs, nil
}

// Delete removes an organization. Memberships cascade via the schema.
func (r *OrganizationRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM organizations WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("ORG_DELETE_FAILED").
			With("operation", "delete organization").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ORG_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanOrganization scans a single row into an Organization.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *OrganizationRepository) scanOrganization(row pgx.Row) (*auth.Organization, error) {
	var (
		idStr       string
		name        string
		description string
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(&idStr, &name, &description, &createdAt, &updatedAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ORG_SCAN_FAILED").
			With("operation", "scan organization").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ORG_INVALID_ID").
			With("operation", "parse organization id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Organization{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.OrganizationRepository = (*OrganizationRepository)(nil)
