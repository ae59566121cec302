// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

// Package xdg provides XDG Base Directory paths for Stashd.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "stashd"

// ConfigDir returns the XDG config directory for stashd.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the default config file path. The file may not
// exist; config loading treats an absent file as empty.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
