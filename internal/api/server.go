// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

// Package api exposes the Stashd HTTP interface: login and organization
// selection, session introspection, and administrative management of users,
// organizations, and memberships.
//
// The server follows the same lifecycle as the observability server:
//
//	server, err := api.New(deps)
//	errCh, err := server.Start()
//	defer server.Stop(ctx)
//
// All routes under /api/v1 except the auth entry points require a session
// token; administrative routes additionally require the ADMIN role in the
// session's organization.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/stashd/stashd/internal/access"
	"github.com/stashd/stashd/internal/auth"
	"github.com/stashd/stashd/internal/observability"
)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Addr        string
	Logger      *slog.Logger
	Auth        *auth.Service
	Tokens      *auth.TokenManager
	Users       auth.UserRepository
	Orgs        auth.OrganizationRepository
	Memberships auth.MembershipRepository
	Hasher      auth.PasswordHasher
	Gate        access.Gate

	// Metrics is optional; a nil value disables counters.
	Metrics *observability.Metrics
}

// Server is the Stashd HTTP API server.
type Server struct {
	addr        string
	logger      *slog.Logger
	auth        *auth.Service
	tokens      *auth.TokenManager
	users       auth.UserRepository
	orgs        auth.OrganizationRepository
	memberships auth.MembershipRepository
	hasher      auth.PasswordHasher
	gate        access.Gate
	metrics     *observability.Metrics

	router     http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// New creates an API server. The server is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("auth service is required")
	}
	if deps.Tokens == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("token manager is required")
	}
	if deps.Users == nil || deps.Orgs == nil || deps.Memberships == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("repositories are required")
	}
	if deps.Hasher == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("password hasher is required")
	}
	if deps.Gate == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("authorization gate is required")
	}

	s := &Server{
		addr:        deps.Addr,
		logger:      deps.Logger,
		auth:        deps.Auth,
		tokens:      deps.Tokens,
		users:       deps.Users,
		orgs:        deps.Orgs,
		memberships: deps.Memberships,
		hasher:      deps.Hasher,
		gate:        deps.Gate,
		metrics:     deps.Metrics,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the fully wired router. Exposed for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving the API. It returns an error channel that receives
// any error from the HTTP server after startup; the channel is closed on
// graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if stopped.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
