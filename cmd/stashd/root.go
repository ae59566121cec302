// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/stashd/stashd/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Stashd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stashd",
		Short: "Stashd - multi-tenant authentication service",
		Long: `Stashd is a multi-tenant authentication and authorization service.
It issues organization-scoped session tokens after password login and an
optional organization-selection step.`,
	}

	// An absent default config file is skipped, not an error.
	cmd.PersistentFlags().StringVar(&configFile, "config", xdg.DefaultConfigFile(), "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}
