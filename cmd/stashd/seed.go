// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stashd/stashd/internal/access"
	"github.com/stashd/stashd/internal/auth"
	authpg "github.com/stashd/stashd/internal/auth/postgres"
	"github.com/stashd/stashd/internal/config"
	"github.com/stashd/stashd/internal/logging"
	"github.com/stashd/stashd/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	orgName       string
	adminName     string
	adminIdentity string
	adminPassword string
	timeout       time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial organization and administrator",
		Long: `Creates a first organization and an administrator account with the
ADMIN role in it. This command is idempotent - it will not create duplicates
if run multiple times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.orgName, "org-name", "Default", "name of the initial organization")
	cmd.Flags().StringVar(&cfg.adminName, "admin-name", "Administrator", "display name of the administrator")
	cmd.Flags().StringVar(&cfg.adminIdentity, "admin-identity", "", "login identity of the administrator (required)")
	cmd.Flags().StringVar(&cfg.adminPassword, "admin-password", "", "password of the administrator (required)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, cfg *seedConfig) error {
	if cfg.adminIdentity == "" || cfg.adminPassword == "" {
		return oops.Code("CONFIG_INVALID").Errorf("--admin-identity and --admin-password are required")
	}
	if err := auth.ValidateIdentity(cfg.adminIdentity); err != nil {
		return err
	}

	appCfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if appCfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}

	logging.SetDefault("stashd", version, appCfg.Log.Format, appCfg.Log.Level)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	// Seeding runs before any subject exists, so it acts as the system.
	ctx = access.WithSystemSubject(ctx)

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, appCfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	cmd.Println("Running migrations...")
	migrator, err := store.NewMigrator(appCfg.Database.URL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	users := authpg.NewUserRepository(pool)
	orgs := authpg.NewOrganizationRepository(pool)
	memberships := authpg.NewMembershipRepository(pool)

	// Organization first; reuse it when it already exists.
	org, err := auth.NewOrganization(cfg.orgName, "Initial organization")
	if err != nil {
		return err
	}
	if err := orgs.Create(ctx, org); err != nil {
		if !store.IsUniqueViolation(err) {
			return oops.Code("SEED_FAILED").With("operation", "create organization").Wrap(err)
		}
		existing, findErr := findOrganizationByName(ctx, orgs, cfg.orgName)
		if findErr != nil {
			return findErr
		}
		org = existing
		cmd.Println("Organization already exists, reusing it")
	} else {
		cmd.Printf("Created organization %q\n", org.Name)
	}

	// Administrator account.
	hasher := auth.NewArgon2idHasher()
	hash, err := hasher.Hash(ctx, cfg.adminPassword)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := auth.NewUser(cfg.adminName, cfg.adminIdentity, &hash)
	if err != nil {
		return err
	}
	if err := users.Create(ctx, user); err != nil {
		if !store.IsUniqueViolation(err) {
			return oops.Code("SEED_FAILED").With("operation", "create administrator").Wrap(err)
		}
		existing, getErr := users.GetByIdentity(ctx, cfg.adminIdentity)
		if getErr != nil {
			return oops.Code("SEED_FAILED").With("operation", "get existing administrator").Wrap(getErr)
		}
		user = existing
		cmd.Println("Administrator already exists, reusing it")
	} else {
		cmd.Printf("Created administrator %q\n", user.Identity)
	}

	// Membership upsert is idempotent by definition.
	if err := memberships.Set(ctx, user.ID, org.ID, []auth.Role{auth.RoleAdmin}); err != nil {
		return oops.Code("SEED_FAILED").With("operation", "grant admin membership").Wrap(err)
	}

	cmd.Println("Seeding complete!")
	return nil
}

// findOrganizationByName scans the organization list for a name match.
// Seeding is rare enough that a list scan beats adding a lookup to the
// repository interface.
func findOrganizationByName(ctx context.Context, orgs auth.OrganizationRepository, name string) (*auth.Organization, error) {
	all, err := orgs.List(ctx)
	if err != nil {
		return nil, oops.Code("SEED_FAILED").With("operation", "list organizations").Wrap(err)
	}
	for _, org := range all {
		if org.Name == name {
			return org, nil
		}
	}
	return nil, oops.Code("SEED_FAILED").With("name", name).Errorf("organization exists but was not found by name")
}
