// Package config loads the ambient settings every tenant database and query
// needs: where tenant database files live, the resource caps of spec.md §5,
// and the hybrid planner's default bounds.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds process-wide settings for the embedding application.
// It is loaded once and passed explicitly to the components that need it;
// there is no package-level global.
type Config struct {
	// DataDir is the directory holding one SQLite file per tenant database.
	DataDir string `mapstructure:"data_dir"`

	// MaxQueryLength enforces the resource cap of spec.md §5 (default 100000).
	MaxQueryLength int `mapstructure:"max_query_length"`

	// DefaultMaxHops is the upper bound the hybrid planner substitutes for an
	// unbounded variable-length quantifier (spec.md §4.5, §5; default 50).
	// The SQL translator does not read it and uses a fixed cap of 50.
	DefaultMaxHops int `mapstructure:"default_max_hops"`

	// BusyTimeoutMS is the SQLite busy_timeout pragma applied to every
	// tenant connection, so concurrent writers serialize instead of failing
	// immediately (spec.md §5 "writes are serialized by the store's
	// journaling mode").
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms"`
}

// Load reads configuration from environment variables prefixed CORVUS_,
// optionally seeded from a .env file in the working directory, falling back
// to defaults for anything unset.
func Load() (*Config, error) {
	// A missing .env file is not an error; godotenv.Load only seeds process
	// env vars that viper then reads through AutomaticEnv.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CORVUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", filepath.Join(".", "data"))
	v.SetDefault("max_query_length", 100_000)
	v.SetDefault("default_max_hops", 50)
	v.SetDefault("busy_timeout_ms", 5_000)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.MaxQueryLength <= 0 {
		return nil, fmt.Errorf("config: max_query_length must be positive, got %d", cfg.MaxQueryLength)
	}
	if cfg.DefaultMaxHops <= 0 {
		return nil, fmt.Errorf("config: default_max_hops must be positive, got %d", cfg.DefaultMaxHops)
	}
	return cfg, nil
}

// TenantPath returns the SQLite file path for a tenant id under DataDir.
func (c *Config) TenantPath(tenantID string) string {
	return filepath.Join(c.DataDir, tenantID+".db")
}
