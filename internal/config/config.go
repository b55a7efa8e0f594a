// Package config provides configuration management for ccgraph.
//
// Config file locations (priority order):
//  1. $CCGRAPH_CONFIG
//  2. ./ccgraph.yaml
//  3. $XDG_CONFIG_HOME/ccgraph/config.yaml
//  4. ~/.config/ccgraph/config.yaml
//  5. /etc/ccgraph/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ccgraph/internal/snapshot"
)

const (
	defaultWorkers        = 4
	defaultMinConnections = 2
	defaultAddr           = ":8080"
	defaultRemoteTimeout  = 30 * time.Second
	defaultReadTimeout    = 30 * time.Second
	defaultWriteTimeout   = 5 * time.Minute
	defaultIssuer         = "ccgraph"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	if c.Snapshot.DataDir == "" {
		c.Snapshot.DataDir = snapshot.DefaultDataDir()
	}
	if c.Snapshot.Version == "" {
		c.Snapshot.Version = snapshot.DefaultVersion
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Store.Path == "" && c.Store.Backend == BackendSQLite {
		c.Store.Path = snapshot.DefaultStorePath(c.Snapshot.DataDir, c.Snapshot.Version)
	}
	if c.Store.Remote.Timeout == 0 {
		c.Store.Remote.Timeout = Duration(defaultRemoteTimeout)
	}

	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(c.Snapshot.DataDir, "cache")
	}

	if c.Discovery.Workers == 0 {
		c.Discovery.Workers = defaultWorkers
	}
	if c.Discovery.DefaultMinConnections == 0 {
		c.Discovery.DefaultMinConnections = defaultMinConnections
	}

	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(defaultReadTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if c.Server.Auth.Issuer == "" {
		c.Server.Auth.Issuer = defaultIssuer
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Telemetry.MetricsExporter == "" {
		c.Telemetry.MetricsExporter = "prometheus"
	}
	if c.Telemetry.TraceExporter == "" {
		c.Telemetry.TraceExporter = "none"
	}
}

// Validate checks settings that defaults cannot repair
func (c *Config) Validate() error {
	var errs []error

	if !c.Store.Backend.Valid() {
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Store.Backend == BackendRemote && c.Store.Remote.URL == "" {
		errs = append(errs, errors.New("store.remote.url is required for the remote backend"))
	}
	if c.Store.Remote.RateLimit < 0 {
		errs = append(errs, errors.New("store.remote.rate_limit must not be negative"))
	}
	if ssh := c.Store.Remote.SSH; ssh.Enabled() && ssh.User == "" {
		errs = append(errs, errors.New("store.remote.ssh.user is required when ssh.host is set"))
	}
	if c.Discovery.Workers < 1 {
		errs = append(errs, errors.New("discovery.workers must be at least 1"))
	}
	if c.Discovery.DefaultMinConnections < 1 {
		errs = append(errs, errors.New("discovery.default_min_connections must be at least 1"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Store: %s", c.Store.Backend)
	switch c.Store.Backend {
	case BackendSQLite:
		summary += fmt.Sprintf(" (%s)", c.Store.Path)
	case BackendRemote:
		summary += fmt.Sprintf(" (%s)", c.Store.Remote.URL)
		if c.Store.Remote.SSH.Enabled() {
			summary += fmt.Sprintf(" via ssh %s", c.Store.Remote.SSH.Host)
		}
	}
	summary += fmt.Sprintf("\nSnapshot: %s in %s\n", c.Snapshot.Version, c.Snapshot.DataDir)
	summary += fmt.Sprintf("Workers: %d, Cache: %v", c.Discovery.Workers, c.Cache.Enabled)

	return summary
}
