// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

// Package auth implements multi-tenant authentication: argon2id password
// hashing, signed session and follow-on tokens, and the two-phase login
// flow with organization selection.
//
// The package is structured around three cooperating pieces:
//
//   - PasswordHasher produces and verifies PHC-encoded argon2id hashes,
//     with a pooled variant bounding concurrent computations.
//   - TokenManager signs and validates HS256 tokens of two kinds: session
//     tokens scoping a subject to one organization with a role snapshot,
//     and short-lived follow-on tokens bridging organization selection.
//   - Service orchestrates login: credential verification always precedes
//     membership lookups, and unknown identities burn the same hashing
//     cost as wrong passwords.
//
// Persistence is defined by the UserRepository, OrganizationRepository, and
// MembershipRepository interfaces; the postgres subpackage provides the
// pgx-backed implementations.
package auth
