// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenKind discriminates the two token types. The kind claim is mandatory:
// it is the only thing preventing a stolen pre-auth follow-on token from
// being replayed as a fully privileged session token.
type TokenKind string

const (
	KindSession  TokenKind = "session"
	KindFollowOn TokenKind = "follow_on"
)

// Token configuration.
const (
	// MinSecretLength is the minimum HS256 signing secret length in bytes.
	MinSecretLength = 32

	// DefaultSessionTTL is the session token lifetime.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultFollowOnTTL is the follow-on token lifetime. Follow-on tokens
	// only bridge the organization-selection step, so they stay short.
	DefaultFollowOnTTL = 5 * time.Minute
)

// tokenClaims is the wire layout for both token kinds. Session-only fields
// are omitted from follow-on tokens.
type tokenClaims struct {
	jwt.RegisteredClaims
	Kind           TokenKind `json:"kind"`
	Identity       string    `json:"identity"`
	OrganizationID string    `json:"org,omitempty"`
	Roles          []Role    `json:"roles,omitempty"`
}

// SessionClaims is the validated content of a session token.
type SessionClaims struct {
	SubjectID      ulid.ULID
	Identity       string
	OrganizationID ulid.ULID
	Roles          []Role
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// FollowOnClaims is the validated content of a follow-on token. It carries
// no organization and no roles; it can only be exchanged for a session.
type FollowOnClaims struct {
	SubjectID ulid.ULID
	Identity  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenManager issues and validates signed HS256 tokens. Validation is pure
// and requires no I/O. The signing secret is immutable for the lifetime of
// the manager; roles embedded in a session token are a snapshot trusted
// until expiry (see DESIGN.md).
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager creates a TokenManager with the given signing secret.
// Secrets shorter than MinSecretLength are rejected; a missing or weak
// secret is a startup-time configuration error, never a per-request one.
func NewTokenManager(secret string) (*TokenManager, error) {
	return NewTokenManagerWithClock(secret, time.Now)
}

// NewTokenManagerWithClock creates a TokenManager with an injectable clock,
// used by tests to exercise expiry without sleeping.
func NewTokenManagerWithClock(secret string, now func() time.Time) (*TokenManager, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("CONFIG_INVALID").
			With("min_length", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if now == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("clock function is required")
	}
	return &TokenManager{secret: []byte(secret), now: now}, nil
}

// IssueSession signs a session token scoping the subject to exactly one
// organization with a role snapshot. The role set must be valid; malformed
// roles are never signed into a token.
func (tm *TokenManager) IssueSession(subjectID ulid.ULID, identity string, orgID ulid.ULID, roles []Role, ttl time.Duration) (string, error) {
	if err := ValidateRoles(roles); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	now := tm.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind:           KindSession,
		Identity:       identity,
		OrganizationID: orgID.String(),
		Roles:          roles,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").With("kind", string(KindSession)).Wrap(err)
	}
	return signed, nil
}

// IssueFollowOn signs a short-lived follow-on token carrying only the
// subject. It grants no resource access by itself.
func (tm *TokenManager) IssueFollowOn(subjectID ulid.ULID, identity string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultFollowOnTTL
	}

	now := tm.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind:     KindFollowOn,
		Identity: identity,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").With("kind", string(KindFollowOn)).Wrap(err)
	}
	return signed, nil
}

// ValidateSession validates a session token and returns its claims.
// Fails with ErrTokenExpired, ErrTokenInvalid, or ErrWrongTokenKind.
func (tm *TokenManager) ValidateSession(token string) (*SessionClaims, error) {
	claims, err := tm.parse(token, KindSession)
	if err != nil {
		return nil, err
	}

	subjectID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_INVALID").With("claim", "sub").Wrap(ErrTokenInvalid)
	}
	orgID, err := ulid.Parse(claims.OrganizationID)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_INVALID").With("claim", "org").Wrap(ErrTokenInvalid)
	}
	if ValidateRoles(claims.Roles) != nil {
		return nil, oops.Code("AUTH_TOKEN_INVALID").With("claim", "roles").Wrap(ErrTokenInvalid)
	}

	return &SessionClaims{
		SubjectID:      subjectID,
		Identity:       claims.Identity,
		OrganizationID: orgID,
		Roles:          claims.Roles,
		IssuedAt:       claims.IssuedAt.Time,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

// ValidateFollowOn validates a follow-on token and returns its claims.
// Fails with ErrTokenExpired, ErrTokenInvalid, or ErrWrongTokenKind.
func (tm *TokenManager) ValidateFollowOn(token string) (*FollowOnClaims, error) {
	claims, err := tm.parse(token, KindFollowOn)
	if err != nil {
		return nil, err
	}

	subjectID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_INVALID").With("claim", "sub").Wrap(ErrTokenInvalid)
	}

	return &FollowOnClaims{
		SubjectID: subjectID,
		Identity:  claims.Identity,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// parse verifies signature, expiry, and kind, in that order. The jwt library
// reports expiry before claims inspection, so an expired token of the wrong
// kind surfaces as ErrTokenExpired; externally both collapse to the same
// unauthenticated outcome.
func (tm *TokenManager) parse(token string, want TokenKind) (*tokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(_ *jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("AUTH_TOKEN_EXPIRED").Wrap(ErrTokenExpired)
		}
		return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrTokenInvalid)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrTokenInvalid)
	}
	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrTokenInvalid)
	}
	if claims.Kind != want {
		return nil, oops.Code("AUTH_WRONG_TOKEN_KIND").
			With("want", string(want)).
			With("got", string(claims.Kind)).
			Wrap(ErrWrongTokenKind)
	}
	return claims, nil
}
