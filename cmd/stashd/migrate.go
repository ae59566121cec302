// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stashd/stashd/internal/config"
	"github.com/stashd/stashd/internal/logging"
	"github.com/stashd/stashd/internal/store"
)

// NewMigrateCmd creates the migrate subcommand with its actions.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.PersistentFlags().String("database.url", "", "PostgreSQL connection URL")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  runMigrateAction(migrateUp),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE:  runMigrateAction(migrateDown),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE:  runMigrateAction(migrateVersion),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force the schema version without running migrations",
			Long: `Force the recorded schema version to recover from a dirty state.
Use only after manually verifying the schema matches the target version.`,
			Args: cobra.ExactArgs(1),
			RunE: runMigrateAction(migrateForce),
		},
	)

	return cmd
}

// runMigrateAction wires config loading and migrator lifecycle around a
// single migration action.
func runMigrateAction(action func(*cobra.Command, []string, *store.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
		}

		logging.SetDefault("stashd", version, cfg.Log.Format, cfg.Log.Level)

		migrator, err := store.NewMigrator(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				cmd.PrintErrln("warning: closing migrator:", closeErr)
			}
		}()

		return action(cmd, args, migrator)
	}
}

func migrateUp(cmd *cobra.Command, _ []string, m *store.Migrator) error {
	cmd.Println("Applying migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations applied")
	return nil
}

func migrateDown(cmd *cobra.Command, _ []string, m *store.Migrator) error {
	cmd.Println("Rolling back one migration...")
	if err := m.Down(); err != nil {
		return err
	}
	cmd.Println("Rollback complete")
	return nil
}

func migrateVersion(cmd *cobra.Command, _ []string, m *store.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if v == 0 && !dirty {
		cmd.Println("No migrations applied")
		return nil
	}
	cmd.Printf("Version: %d (dirty: %t)\n", v, dirty)
	return nil
}

func migrateForce(cmd *cobra.Command, args []string, m *store.Migrator) error {
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code("INVALID_VERSION").With("arg", args[0]).Wrap(err)
	}
	if err := m.Force(v); err != nil {
		return err
	}
	cmd.Printf("Forced schema version to %d\n", v)
	return nil
}
