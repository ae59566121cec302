// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package auth

import "errors"

// Sentinel errors for the authentication core. Services wrap these with
// oops codes for diagnostics; callers branch with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned for a bad identity or password.
	// Unknown identities and wrong passwords are never distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoOrganizationAccess is returned when a subject has no memberships,
	// regardless of credential correctness.
	ErrNoOrganizationAccess = errors.New("no organization access")

	// ErrOrgAccessDenied is returned when the requested or selected
	// organization is not in the subject's membership set.
	ErrOrgAccessDenied = errors.New("organization access denied")

	// ErrTokenExpired is returned for a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid is returned for signature or structural token failures.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrWrongTokenKind is returned when a follow-on token is presented where
	// a session token is expected, or vice versa.
	ErrWrongTokenKind = errors.New("wrong token kind")
)
