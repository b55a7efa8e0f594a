package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects and configures the graph store backend
type StoreConfig struct {
	Backend Backend      `yaml:"backend"`
	Path    string       `yaml:"path,omitempty"` // sqlite snapshot file
	Remote  RemoteConfig `yaml:"remote,omitempty"`
}

// RemoteConfig holds settings for a store reached over HTTP
type RemoteConfig struct {
	URL       string    `yaml:"url,omitempty"`
	Timeout   Duration  `yaml:"timeout,omitempty"`
	RateLimit float64   `yaml:"rate_limit,omitempty"` // calls per second, 0 = unlimited
	Burst     int       `yaml:"burst,omitempty"`
	Token     string    `yaml:"token,omitempty"`
	Serialize bool      `yaml:"serialize,omitempty"`
	SSH       SSHConfig `yaml:"ssh,omitempty"`
}

// SSHConfig describes an optional bastion in front of the remote store
type SSHConfig struct {
	Host       string `yaml:"host,omitempty"`
	User       string `yaml:"user,omitempty"`
	KeyFile    string `yaml:"key_file,omitempty"`
	Password   string `yaml:"password,omitempty"`
	KnownHosts string `yaml:"known_hosts,omitempty"`
}

// Enabled reports whether a bastion is configured
func (s SSHConfig) Enabled() bool {
	return s.Host != ""
}

// CacheConfig holds adjacency cache settings
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir,omitempty"`
	InMemory bool   `yaml:"in_memory,omitempty"`
}

// SnapshotConfig locates downloaded graph artifacts
type SnapshotConfig struct {
	DataDir string `yaml:"data_dir"`
	Version string `yaml:"version"`
}

// DiscoveryConfig holds query defaults
type DiscoveryConfig struct {
	Workers               int `yaml:"workers"`
	DefaultMinConnections int `yaml:"default_min_connections"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr         string     `yaml:"addr"`
	ReadTimeout  Duration   `yaml:"read_timeout"`
	WriteTimeout Duration   `yaml:"write_timeout"`
	Auth         AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig enables bearer token checks when JWTSecret is set
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	Issuer    string `yaml:"issuer,omitempty"`
}

// Enabled reports whether requests must carry a token
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, or empty for auto
}

// TelemetryConfig selects metric and trace exporters
type TelemetryConfig struct {
	MetricsExporter string `yaml:"metrics_exporter"` // prometheus, stdout, none
	TraceExporter   string `yaml:"trace_exporter"`   // otlp, stdout, none
	OTLPEndpoint    string `yaml:"otlp_endpoint,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
