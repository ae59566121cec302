// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

// Package accesstest provides test helpers for access control.
package accesstest

import (
	"context"
	"sync"

	"github.com/stashd/stashd/internal/access"
	"github.com/stashd/stashd/internal/auth"
)

// AllowAll is a Gate that allows everything.
type AllowAll struct{}

// RequireRole always returns nil.
func (AllowAll) RequireRole(_ context.Context, _ auth.Role) error { return nil }

// RequireAdmin always returns nil.
func (AllowAll) RequireAdmin(_ context.Context) error { return nil }

// DenyAll is a Gate that denies everything.
type DenyAll struct{}

// RequireRole always returns ErrForbidden.
func (DenyAll) RequireRole(_ context.Context, _ auth.Role) error { return access.ErrForbidden }

// RequireAdmin always returns ErrForbidden.
func (DenyAll) RequireAdmin(_ context.Context) error { return access.ErrForbidden }

// Check records a single gate decision.
type Check struct {
	Role auth.Role
}

// RecordingGate delegates to an inner Gate and records every check, so
// tests can assert that protected operations actually consult the gate.
type RecordingGate struct {
	Inner access.Gate

	mu     sync.Mutex
	checks []Check
}

// NewRecordingGate wraps inner; a nil inner delegates to the default gate.
func NewRecordingGate(inner access.Gate) *RecordingGate {
	if inner == nil {
		inner = access.NewStaticGate()
	}
	return &RecordingGate{Inner: inner}
}

// RequireRole implements Gate.
func (g *RecordingGate) RequireRole(ctx context.Context, role auth.Role) error {
	g.mu.Lock()
	g.checks = append(g.checks, Check{Role: role})
	g.mu.Unlock()
	return g.Inner.RequireRole(ctx, role)
}

// RequireAdmin implements Gate.
func (g *RecordingGate) RequireAdmin(ctx context.Context) error {
	return g.RequireRole(ctx, auth.RoleAdmin)
}

// Checks returns a copy of the recorded decisions.
func (g *RecordingGate) Checks() []Check {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Check(nil), g.checks...)
}

// Reset clears the recorded decisions.
func (g *RecordingGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks = nil
}

// Verify interfaces are satisfied.
var (
	_ access.Gate = AllowAll{}
	_ access.Gate = DenyAll{}
	_ access.Gate = (*RecordingGate)(nil)
)
