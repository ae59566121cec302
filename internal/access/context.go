// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package access

import (
	"context"
	"errors"
)

// Authorization failures. Transport layers map these onto their own status
// codes; the distinction is internal only.
var (
	// ErrUnauthenticated is returned when no subject is resolved for the request.
	ErrUnauthenticated = errors.New("no authenticated subject")

	// ErrForbidden is returned when the subject lacks the required role.
	ErrForbidden = errors.New("subject lacks required role")
)

type authContextKey struct{}

type systemSubjectKey struct{}

// WithAuthContext returns a context carrying the resolved AuthContext.
func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext extracts the AuthContext resolved for this request, if any.
func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(AuthContext)
	return ac, ok
}

// WithSystemSubject returns a context marked as a system-level operation,
// which bypasses normal access control checks.
func WithSystemSubject(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemSubjectKey{}, true)
}

// IsSystemContext reports whether the context was marked as a system operation
// via WithSystemSubject.
func IsSystemContext(ctx context.Context) bool {
	v, ok := ctx.Value(systemSubjectKey{}).(bool)
	return ok && v
}
