// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashd/stashd/internal/auth"
)

func userColumns() []string {
	return []string{"id", "name", "identity", "password_hash", "created_at", "updated_at"}
}

func TestUserRepository_Create(t *testing.T) {
	hash := "$argon2id$hash"
	now := time.Now()
	user := &auth.User{
		ID:           ulid.Make(),
		Name:         "Alice",
		Identity:     "alice@example.com",
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		errMsg    string
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Name, user.Identity, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			wantErr: false,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Name, user.Identity, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errMsg:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			err = repo.Create(context.Background(), user)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_GetByIdentity(t *testing.T) {
	id := ulid.Make()
	hash := "$argon2id$hash"
	now := time.Now()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantNil   bool
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns()).
					AddRow(id.String(), "Alice", "alice@example.com", &hash, now, now)
				mock.ExpectQuery(`SELECT id, name, identity, password_hash`).
					WithArgs("alice@example.com").
					WillReturnRows(rows)
			},
		},
		{
			name: "not found maps to sentinel",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, name, identity, password_hash`).
					WithArgs("alice@example.com").
					WillReturnRows(pgxmock.NewRows(userColumns()))
			},
			wantErr: auth.ErrNotFound,
			wantNil: true,
		},
		{
			name: "corrupt id rejected",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns()).
					AddRow("not-a-ulid", "Alice", "alice@example.com", &hash, now, now)
				mock.ExpectQuery(`SELECT id, name, identity, password_hash`).
					WithArgs("alice@example.com").
					WillReturnRows(rows)
			},
			wantErr: ulid.ErrDataSize,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			user, err := repo.GetByIdentity(context.Background(), "alice@example.com")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				require.NotNil(t, user)
				assert.Equal(t, id, user.ID)
				assert.Equal(t, "alice@example.com", user.Identity)
				require.NotNil(t, user.PasswordHash)
				assert.Equal(t, hash, *user.PasswordHash)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_GetByID_NilPasswordHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := ulid.Make()
	now := time.Now()
	rows := pgxmock.NewRows(userColumns()).
		AddRow(id.String(), "Bot", "bot@example.com", (*string)(nil), now, now)
	mock.ExpectQuery(`SELECT id, name, identity, password_hash`).
		WithArgs(id.String()).
		WillReturnRows(rows)

	repo := NewUserRepository(mock)
	user, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, user.PasswordHash)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id1 := ulid.Make()
	id2 := ulid.Make()
	hash := "$argon2id$hash"
	now := time.Now()
	rows := pgxmock.NewRows(userColumns()).
		AddRow(id1.String(), "Alice", "alice@example.com", &hash, now, now).
		AddRow(id2.String(), "Bob", "bob@example.com", &hash, now, now)
	mock.ExpectQuery(`SELECT id, name, identity, password_hash`).
		WillReturnRows(rows)

	repo := NewUserRepository(mock)
	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice@example.com", users[0].Identity)
	assert.Equal(t, "bob@example.com", users[1].Identity)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Delete(t *testing.T) {
	id := ulid.Make()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "deleted",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`DELETE FROM users`).
					WithArgs(id.String()).
					WillReturnResult(pgxmock.NewResult("DELETE", 1))
			},
		},
		{
			name: "missing row maps to sentinel",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`DELETE FROM users`).
					WithArgs(id.String()).
					WillReturnResult(pgxmock.NewResult("DELETE", 0))
			},
			wantErr: auth.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			err = repo.Delete(context.Background(), id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}
