// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stashd/stashd/internal/access"
	"github.com/stashd/stashd/internal/api"
	"github.com/stashd/stashd/internal/auth"
	authpg "github.com/stashd/stashd/internal/auth/postgres"
	"github.com/stashd/stashd/internal/config"
	"github.com/stashd/stashd/internal/logging"
	"github.com/stashd/stashd/internal/observability"
	"github.com/stashd/stashd/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication server",
		Long: `Start the HTTP API server. Configuration is read from defaults,
then the config file, then flags; flags win.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Flag names mirror config keys so they layer over the file directly.
	// Unchanged flags fall back to file values, so defaults here must match
	// config.Default().
	def := config.Default()
	flags := cmd.Flags()
	flags.String("server.addr", def.Server.Addr, "API listen address")
	flags.String("database.url", "", "PostgreSQL connection URL")
	flags.String("auth.jwt_secret", "", "token signing secret (min 32 bytes)")
	flags.Duration("auth.session_ttl", def.Auth.SessionTTL, "session token lifetime")
	flags.Duration("auth.follow_on_ttl", def.Auth.FollowOnTTL, "follow-on token lifetime")
	flags.Int("auth.hash_concurrency", def.Auth.HashConcurrency, "max concurrent password hashes (0 = one per CPU)")
	flags.Bool("metrics.enabled", def.Metrics.Enabled, "serve metrics and health probes")
	flags.String("metrics.addr", def.Metrics.Addr, "metrics listen address")
	flags.String("log.format", def.Log.Format, "log format (json or text)")
	flags.String("log.level", def.Log.Level, "log level (debug, info, warn, error)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("stashd", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := authpg.NewUserRepository(pool)
	orgs := authpg.NewOrganizationRepository(pool)
	memberships := authpg.NewMembershipRepository(pool)

	hasher := auth.NewPooledHasher(auth.NewArgon2idHasher(), cfg.Auth.HashConcurrency)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	svc, err := auth.NewServiceWithLogger(users, orgs, memberships, hasher, tokens, logger)
	if err != nil {
		return err
	}
	svc.SetTTLs(cfg.Auth.SessionTTL, cfg.Auth.FollowOnTTL)

	// Readiness flips once the API listener is up.
	var ready atomic.Bool

	var metrics *observability.Metrics
	var obsServer *observability.Server
	var obsErrCh <-chan error
	if cfg.Metrics.Enabled {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool {
			return ready.Load() && pool.Ping(context.Background()) == nil
		})
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		metrics = obsServer.Metrics()
	}

	apiServer, err := api.New(api.Deps{
		Addr:        cfg.Server.Addr,
		Logger:      logger,
		Auth:        svc,
		Tokens:      tokens,
		Users:       users,
		Orgs:        orgs,
		Memberships: memberships,
		Hasher:      hasher,
		Gate:        access.NewStaticGate(),
		Metrics:     metrics,
	})
	if err != nil {
		return err
	}

	apiErrCh, err := apiServer.Start()
	if err != nil {
		if obsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = obsServer.Stop(shutdownCtx)
		}
		return oops.With("operation", "start api server").Wrap(err)
	}
	ready.Store(true)

	cmd.Println("Stashd server started")
	logger.Info("server ready",
		"api_addr", apiServer.Addr(),
		"metrics_enabled", cfg.Metrics.Enabled,
		"session_ttl", cfg.Auth.SessionTTL.String(),
	)

	// Block until a signal arrives or a server fails.
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err, ok := <-apiErrCh:
		if ok && err != nil {
			serveErr = oops.With("server", "api").Wrap(err)
		}
	case err, ok := <-obsErrCh:
		if ok && err != nil {
			serveErr = oops.With("server", "observability").Wrap(err)
		}
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return serveErr
}
