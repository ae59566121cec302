// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

// Package config loads service configuration from an optional YAML file
// layered under command-line flags.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/stashd/stashd/internal/auth"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the API listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// AuthConfig configures hashing and token issuance.
type AuthConfig struct {
	// JWTSecret signs session and follow-on tokens. Min 32 bytes.
	JWTSecret string `koanf:"jwt_secret"`

	SessionTTL  time.Duration `koanf:"session_ttl"`
	FollowOnTTL time.Duration `koanf:"follow_on_ttl"`

	// HashConcurrency caps concurrent argon2 computations.
	// Zero means one per CPU.
	HashConcurrency int `koanf:"hash_concurrency"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"` // "json" or "text"
	Level  string `koanf:"level"`  // debug, info, warn, error
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			SessionTTL:  auth.DefaultSessionTTL,
			FollowOnTTL: auth.DefaultFollowOnTTL,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9100",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// envKeys maps environment variables to config keys. Only secrets are
// settable from the environment, so they can stay out of config files and
// shell history.
var envKeys = map[string]string{
	"STASHD_DATABASE_URL": "database.url",
	"STASHD_JWT_SECRET":   "auth.jwt_secret",
	"DATABASE_URL":        "database.url",
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is empty or the file is absent it is skipped), then environment
// secrets, then any flags set on flags. Each layer wins over the previous.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").
					With("path", path).
					Wrap(err)
			}
		} else if !os.IsNotExist(err) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	// Returning "" from the callback drops variables outside envKeys.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "merge environment").
			Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "merge flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "unmarshal").
			Wrap(err)
	}

	return &cfg, nil
}

// Validate checks the invariants serve-time code relies on. Called once at
// startup; nothing later re-checks these.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("min_length", auth.MinSecretLength).
			Errorf("auth.jwt_secret must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.SessionTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.FollowOnTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.follow_on_ttl must be positive")
	}
	if c.Auth.HashConcurrency < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.hash_concurrency cannot be negative")
	}
	return nil
}
