// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashd/stashd/internal/auth"
)

func TestMembershipRepository_Set(t *testing.T) {
	userID := ulid.Make()
	orgID := ulid.Make()

	t.Run("upserts validated roles", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO memberships`).
			WithArgs(userID.String(), orgID.String(), []string{"USER", "ADMIN"}, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewMembershipRepository(mock)
		err = repo.Set(context.Background(), userID, orgID, []auth.Role{auth.RoleUser, auth.RoleAdmin})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid roles before touching the pool", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewMembershipRepository(mock)

		assert.Error(t, repo.Set(context.Background(), userID, orgID, nil))
		assert.Error(t, repo.Set(context.Background(), userID, orgID, []auth.Role{"OWNER"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO memberships`).
			WithArgs(userID.String(), orgID.String(), []string{"USER"}, pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		repo := NewMembershipRepository(mock)
		err = repo.Set(context.Background(), userID, orgID, []auth.Role{auth.RoleUser})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMembershipRepository_Remove(t *testing.T) {
	userID := ulid.Make()
	orgID := ulid.Make()

	t.Run("removed", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM memberships`).
			WithArgs(userID.String(), orgID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewMembershipRepository(mock)
		assert.NoError(t, repo.Remove(context.Background(), userID, orgID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row maps to sentinel", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM memberships`).
			WithArgs(userID.String(), orgID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewMembershipRepository(mock)
		assert.ErrorIs(t, repo.Remove(context.Background(), userID, orgID), auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMembershipRepository_ListByUser(t *testing.T) {
	userID := ulid.Make()
	org1 := ulid.Make()
	org2 := ulid.Make()
	columns := []string{"id", "name", "description", "roles"}

	t.Run("joins organization display data", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows(columns).
			AddRow(org1.String(), "Acme", "widgets", []string{"ADMIN"}).
			AddRow(org2.String(), "Globex", "", []string{"USER"})
		mock.ExpectQuery(`SELECT o.id, o.name, o.description, m.roles`).
			WithArgs(userID.String()).
			WillReturnRows(rows)

		repo := NewMembershipRepository(mock)
		memberships, err := repo.ListByUser(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, memberships, 2)
		assert.Equal(t, org1, memberships[0].OrganizationID)
		assert.Equal(t, "Acme", memberships[0].OrganizationName)
		assert.Equal(t, []auth.Role{auth.RoleAdmin}, memberships[0].Roles)
		assert.Equal(t, []auth.Role{auth.RoleUser}, memberships[1].Roles)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT o.id, o.name, o.description, m.roles`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows(columns))

		repo := NewMembershipRepository(mock)
		memberships, err := repo.ListByUser(context.Background(), userID)
		require.NoError(t, err)
		assert.Empty(t, memberships)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown stored role rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows(columns).
			AddRow(org1.String(), "Acme", "", []string{"SUPERUSER"})
		mock.ExpectQuery(`SELECT o.id, o.name, o.description, m.roles`).
			WithArgs(userID.String()).
			WillReturnRows(rows)

		repo := NewMembershipRepository(mock)
		memberships, err := repo.ListByUser(context.Background(), userID)
		require.Error(t, err)
		assert.Nil(t, memberships)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
