// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Identity validation constraints.
const (
	MaxIdentityLength = 254
	MaxNameLength     = 100
)

// identityRegex matches email-shaped identities: local part, @, domain with
// at least one dot. Deliberately loose; the identity is an opaque login key,
// not a deliverable address.
var identityRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents an account that can authenticate.
// A nil PasswordHash disables password login for the account.
type User struct {
	ID           ulid.ULID
	Name         string
	Identity     string
	PasswordHash *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User. passwordHash may be nil to create an
// account without password authentication.
func NewUser(name, identity string, passwordHash *string) (*User, error) {
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, oops.Code("AUTH_INVALID_NAME").Errorf("display name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return nil, oops.Code("AUTH_INVALID_NAME").
			With("max", MaxNameLength).
			Errorf("display name must be at most %d characters", MaxNameLength)
	}
	if passwordHash != nil && *passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty when provided")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Name:         name,
		Identity:     identity,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateIdentity validates a login identity (email-shaped, unique per user).
func ValidateIdentity(identity string) error {
	if identity == "" {
		return oops.Code("AUTH_INVALID_IDENTITY").Errorf("identity cannot be empty")
	}
	if len(identity) > MaxIdentityLength {
		return oops.Code("AUTH_INVALID_IDENTITY").
			With("max", MaxIdentityLength).
			Errorf("identity must be at most %d characters", MaxIdentityLength)
	}
	if !identityRegex.MatchString(identity) {
		return oops.Code("AUTH_INVALID_IDENTITY").Errorf("identity must be email-shaped")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByIdentity retrieves a user by identity (case-insensitive).
	GetByIdentity(ctx context.Context, identity string) (*User, error)

	// List returns all users ordered by identity.
	List(ctx context.Context) ([]*User, error)

	// Delete removes a user. Memberships cascade at the schema level.
	Delete(ctx context.Context, id ulid.ULID) error
}
