// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package access_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashd/stashd/internal/access"
	"github.com/stashd/stashd/internal/auth"
)

func TestAuthContextRoundTrip(t *testing.T) {
	ac := access.AuthContext{
		SubjectID:      ulid.Make(),
		Identity:       "alice@example.com",
		OrganizationID: ulid.Make(),
		Roles:          []auth.Role{auth.RoleUser},
	}

	ctx := access.WithAuthContext(context.Background(), ac)

	got, ok := access.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, ac, got)
}

func TestFromContextAbsent(t *testing.T) {
	_, ok := access.FromContext(context.Background())
	assert.False(t, ok)
}

func TestSystemContext(t *testing.T) {
	assert.False(t, access.IsSystemContext(context.Background()))

	ctx := access.WithSystemSubject(context.Background())
	assert.True(t, access.IsSystemContext(ctx))
}
