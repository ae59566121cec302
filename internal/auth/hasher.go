// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
//
// Verify fails closed: a malformed or foreign-algorithm hash yields
// (false, nil), never an error describing the hash. The error return is
// reserved for cancellation while waiting on hashing capacity.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the password. Salted per call, so
	// identical inputs produce distinct encodings.
	Hash(ctx context.Context, password string) (string, error)

	// Verify checks if the password matches the encoded hash.
	Verify(ctx context.Context, password, encodedHash string) (bool, error)
}

// Argon2idHasher implements PasswordHasher using argon2id with PHC encoding.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(_ context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// PHC string format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks if the password matches the encoded hash. Any decode or
// format failure burns one argon2 computation against a throwaway salt and
// returns false, so verification cost does not depend on hash validity.
func (h *Argon2idHasher) Verify(_ context.Context, password, encodedHash string) (bool, error) {
	params, salt, expected, ok := decodeHash(encodedHash)
	if !ok {
		burnHash(password)
		return false, nil
	}

	computed := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, params.keyLen)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// decodeHash parses a PHC-encoded argon2id hash. Returns ok=false on any
// structural problem; callers must treat that as verification failure.
func decodeHash(encodedHash string) (argon2Params, []byte, []byte, bool) {
	var zero argon2Params

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return zero, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return zero, nil, nil, false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return zero, nil, nil, false
	}
	// threads must fit in uint8 to prevent silent truncation
	if threads == 0 || threads > 255 {
		return zero, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return zero, nil, nil, false
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return zero, nil, nil, false
	}
	keyLen := len(expected)
	if keyLen == 0 || keyLen > 1<<30 {
		return zero, nil, nil, false
	}

	return argon2Params{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		keyLen:  uint32(keyLen),
	}, salt, expected, true
}

// burnHash runs one argon2 computation with the default parameters so that
// rejecting a malformed hash costs the same as a real verification.
func burnHash(password string) {
	var salt [argon2SaltLen]byte
	argon2.IDKey([]byte(password), salt[:], argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// PooledHasher bounds concurrent hash computations with a weighted semaphore
// so password hashing cannot starve unrelated request handling. Acquisition
// respects context cancellation; no partial state exists to clean up.
type PooledHasher struct {
	inner PasswordHasher
	sem   *semaphore.Weighted
}

// NewPooledHasher wraps inner with a concurrency cap. A non-positive limit
// defaults to GOMAXPROCS.
func NewPooledHasher(inner PasswordHasher, limit int) *PooledHasher {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &PooledHasher{
		inner: inner,
		sem:   semaphore.NewWeighted(int64(limit)),
	}
}

// Hash acquires a hashing slot, then delegates to the inner hasher.
func (p *PooledHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", oops.Code("AUTH_HASH_CANCELLED").Wrap(err)
	}
	defer p.sem.Release(1)
	return p.inner.Hash(ctx, password)
}

// Verify acquires a hashing slot, then delegates to the inner hasher.
func (p *PooledHasher) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, oops.Code("AUTH_HASH_CANCELLED").Wrap(err)
	}
	defer p.sem.Release(1)
	return p.inner.Verify(ctx, password, encodedHash)
}

// Compile-time interface checks.
var (
	_ PasswordHasher = (*Argon2idHasher)(nil)
	_ PasswordHasher = (*PooledHasher)(nil)
)
