// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashd/stashd/internal/auth"
)

func TestHashPassword(t *testing.T) {
	ctx := context.Background()
	hasher := auth.NewArgon2idHasher()

	t.Run("produces valid hash", func(t *testing.T) {
		hash, err := hasher.Hash(ctx, "password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	})

	t.Run("different passwords produce different hashes", func(t *testing.T) {
		hash1, err := hasher.Hash(ctx, "password1")
		require.NoError(t, err)
		hash2, err := hasher.Hash(ctx, "password2")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash(ctx, "samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash(ctx, "samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash(ctx, "")
		assert.Error(t, err)
	})
}

func TestVerifyPassword(t *testing.T) {
	ctx := context.Background()
	hasher := auth.NewArgon2idHasher()

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash(ctx, "correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify(ctx, "correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		hash, err := hasher.Hash(ctx, "correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify(ctx, "wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	// Malformed hashes fail closed: (false, nil), never an error that leaks
	// why the hash was unusable.
	t.Run("invalid hash format fails closed", func(t *testing.T) {
		ok, err := hasher.Verify(ctx, "password", "not-a-valid-hash")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong algorithm fails closed", func(t *testing.T) {
		ok, err := hasher.Verify(ctx, "password", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid version fails closed", func(t *testing.T) {
		ok, err := hasher.Verify(ctx, "password", "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid parameters fail closed", func(t *testing.T) {
		ok, err := hasher.Verify(ctx, "password", "$argon2id$v=19$invalid$c2FsdA$aGFzaA")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid salt base64 fails closed", func(t *testing.T) {
		ok, err := hasher.Verify(ctx, "password", "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid hash base64 fails closed", func(t *testing.T) {
		ok, err := hasher.Verify(ctx, "password", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("threads overflow fails closed", func(t *testing.T) {
		// threads=256 exceeds uint8 max (255)
		ok, err := hasher.Verify(ctx, "password", "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty hash fails closed", func(t *testing.T) {
		ok, err := hasher.Verify(ctx, "password", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPooledHasher(t *testing.T) {
	ctx := context.Background()

	t.Run("delegates to inner hasher", func(t *testing.T) {
		pooled := auth.NewPooledHasher(auth.NewArgon2idHasher(), 2)

		hash, err := pooled.Hash(ctx, "pooledpassword")
		require.NoError(t, err)

		ok, err := pooled.Verify(ctx, "pooledpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("non-positive limit defaults", func(t *testing.T) {
		pooled := auth.NewPooledHasher(auth.NewArgon2idHasher(), 0)

		hash, err := pooled.Hash(ctx, "password")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	})

	t.Run("cancelled context aborts acquisition", func(t *testing.T) {
		pooled := auth.NewPooledHasher(auth.NewArgon2idHasher(), 1)

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := pooled.Hash(cancelled, "password")
		require.Error(t, err)

		_, err = pooled.Verify(cancelled, "password", "$argon2id$")
		require.Error(t, err)
	})
}
