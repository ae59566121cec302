// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashd/stashd/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewTokenManager(t *testing.T) {
	t.Run("accepts secret at minimum length", func(t *testing.T) {
		tm, err := auth.NewTokenManager(testSecret)
		require.NoError(t, err)
		assert.NotNil(t, tm)
	})

	t.Run("rejects short secret", func(t *testing.T) {
		tm, err := auth.NewTokenManager("too-short")
		require.Error(t, err)
		assert.Nil(t, tm)
	})

	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := auth.NewTokenManager("")
		assert.Error(t, err)
	})

	t.Run("rejects nil clock", func(t *testing.T) {
		_, err := auth.NewTokenManagerWithClock(testSecret, nil)
		assert.Error(t, err)
	})
}

func TestSessionTokenRoundTrip(t *testing.T) {
	tm, err := auth.NewTokenManager(testSecret)
	require.NoError(t, err)

	subjectID := ulid.Make()
	orgID := ulid.Make()
	roles := []auth.Role{auth.RoleUser, auth.RoleAdmin}

	token, err := tm.IssueSession(subjectID, "alice@example.com", orgID, roles, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, subjectID, claims.SubjectID)
	assert.Equal(t, "alice@example.com", claims.Identity)
	assert.Equal(t, orgID, claims.OrganizationID)
	assert.Equal(t, roles, claims.Roles)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestFollowOnTokenRoundTrip(t *testing.T) {
	tm, err := auth.NewTokenManager(testSecret)
	require.NoError(t, err)

	subjectID := ulid.Make()

	token, err := tm.IssueFollowOn(subjectID, "bob@example.com", 5*time.Minute)
	require.NoError(t, err)

	claims, err := tm.ValidateFollowOn(token)
	require.NoError(t, err)
	assert.Equal(t, subjectID, claims.SubjectID)
	assert.Equal(t, "bob@example.com", claims.Identity)
}

func TestIssueSessionRejectsBadRoles(t *testing.T) {
	tm, err := auth.NewTokenManager(testSecret)
	require.NoError(t, err)

	t.Run("empty role set", func(t *testing.T) {
		_, err := tm.IssueSession(ulid.Make(), "a@b.com", ulid.Make(), nil, time.Hour)
		assert.Error(t, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := tm.IssueSession(ulid.Make(), "a@b.com", ulid.Make(), []auth.Role{"SUPERUSER"}, time.Hour)
		assert.Error(t, err)
	})

	t.Run("duplicate role", func(t *testing.T) {
		_, err := tm.IssueSession(ulid.Make(), "a@b.com", ulid.Make(), []auth.Role{auth.RoleUser, auth.RoleUser}, time.Hour)
		assert.Error(t, err)
	})
}

func TestTokenKindConfusion(t *testing.T) {
	tm, err := auth.NewTokenManager(testSecret)
	require.NoError(t, err)

	session, err := tm.IssueSession(ulid.Make(), "a@b.com", ulid.Make(), []auth.Role{auth.RoleUser}, time.Hour)
	require.NoError(t, err)
	followOn, err := tm.IssueFollowOn(ulid.Make(), "a@b.com", 5*time.Minute)
	require.NoError(t, err)

	t.Run("follow-on token rejected as session", func(t *testing.T) {
		_, err := tm.ValidateSession(followOn)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrWrongTokenKind)
	})

	t.Run("session token rejected as follow-on", func(t *testing.T) {
		_, err := tm.ValidateFollowOn(session)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrWrongTokenKind)
	})
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()
	clock := &fakeClock{now: now}
	tm, err := auth.NewTokenManagerWithClock(testSecret, clock.Now)
	require.NoError(t, err)

	session, err := tm.IssueSession(ulid.Make(), "a@b.com", ulid.Make(), []auth.Role{auth.RoleUser}, time.Hour)
	require.NoError(t, err)
	followOn, err := tm.IssueFollowOn(ulid.Make(), "a@b.com", 5*time.Minute)
	require.NoError(t, err)

	t.Run("valid before expiry", func(t *testing.T) {
		_, err := tm.ValidateSession(session)
		assert.NoError(t, err)
	})

	t.Run("follow-on expires first", func(t *testing.T) {
		clock.now = now.Add(6 * time.Minute)

		_, err := tm.ValidateFollowOn(followOn)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)

		_, err = tm.ValidateSession(session)
		assert.NoError(t, err)
	})

	t.Run("session expires after its TTL", func(t *testing.T) {
		clock.now = now.Add(2 * time.Hour)

		_, err := tm.ValidateSession(session)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
	})
}

func TestTokenTamperAndGarbage(t *testing.T) {
	tm, err := auth.NewTokenManager(testSecret)
	require.NoError(t, err)

	token, err := tm.IssueSession(ulid.Make(), "a@b.com", ulid.Make(), []auth.Role{auth.RoleUser}, time.Hour)
	require.NoError(t, err)

	t.Run("tampered payload is invalid", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + "x." + parts[2]

		_, err := tm.ValidateSession(tampered)
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)
	})

	t.Run("garbage is invalid", func(t *testing.T) {
		_, err := tm.ValidateSession("not.a.token")
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)
	})

	t.Run("empty string is invalid", func(t *testing.T) {
		_, err := tm.ValidateSession("")
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)
	})

	t.Run("foreign secret is invalid", func(t *testing.T) {
		other, err := auth.NewTokenManager("ffffffffffffffffffffffffffffffff")
		require.NoError(t, err)

		_, err = other.ValidateSession(token)
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)
	})
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
