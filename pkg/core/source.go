package core

import "time"

// Source is a physical database registered under a base.
type Source struct {
	ID     string       `json:"id" yaml:"id"`
	BaseID string       `json:"base_id" yaml:"base_id"`
	Alias  string       `json:"alias" yaml:"alias"`
	Config SourceConfig `json:"config" yaml:"config"`
}

// SourceConfig holds configuration for connecting to a source.
type SourceConfig struct {
	Type string `koanf:"type" json:"type" yaml:"type"` // postgres, mysql, sqlite, libsql, duckdb

	// File-based databases (SQLite, DuckDB) and libsql URLs
	Path string `koanf:"path" json:"path,omitempty" yaml:"path,omitempty"`

	// Network databases
	Host     string `koanf:"host" json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `koanf:"port" json:"port,omitempty" yaml:"port,omitempty"`
	Database string `koanf:"database" json:"database,omitempty" yaml:"database,omitempty"`
	User     string `koanf:"user" json:"user,omitempty" yaml:"user,omitempty"`
	Password string `koanf:"password" json:"password,omitempty" yaml:"password,omitempty"`

	// Common
	Schema string `koanf:"schema" json:"schema,omitempty" yaml:"schema,omitempty"`

	SSL *SSLConfig `koanf:"ssl" json:"ssl,omitempty" yaml:"ssl,omitempty"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options" json:"options,omitempty" yaml:"options,omitempty"`

	// Params holds adapter-specific configuration decoded with mapstructure
	Params map[string]any `koanf:"params" json:"params,omitempty" yaml:"params,omitempty"`

	Capabilities CapabilityOverrides `koanf:"capabilities" json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Pool         PoolConfig          `koanf:"pool" json:"pool,omitempty" yaml:"pool,omitempty"`
}

// SSLConfig carries TLS material either inline (PEM) or as file paths.
// File paths are read and inlined before connecting.
type SSLConfig struct {
	Mode               string `koanf:"mode" json:"mode,omitempty" yaml:"mode,omitempty"`
	CA                 string `koanf:"ca" json:"ca,omitempty" yaml:"ca,omitempty"`
	Key                string `koanf:"key" json:"key,omitempty" yaml:"key,omitempty"`
	Cert               string `koanf:"cert" json:"cert,omitempty" yaml:"cert,omitempty"`
	CAFile             string `koanf:"ca_file" json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
	KeyFile            string `koanf:"key_file" json:"key_file,omitempty" yaml:"key_file,omitempty"`
	CertFile           string `koanf:"cert_file" json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	ServerName         string `koanf:"server_name" json:"server_name,omitempty" yaml:"server_name,omitempty"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify" json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
}

// HasMaterial reports whether any inline PEM block is present.
func (s *SSLConfig) HasMaterial() bool {
	return s != nil && (s.CA != "" || s.Cert != "" || s.Key != "")
}

// PoolConfig bounds the connections held for one source.
type PoolConfig struct {
	MaxConns        int           `koanf:"max_conns" json:"max_conns,omitempty" yaml:"max_conns,omitempty"`
	MaxIdleConns    int           `koanf:"max_idle_conns" json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	AcquireTimeout  time.Duration `koanf:"acquire_timeout" json:"acquire_timeout,omitempty" yaml:"acquire_timeout,omitempty"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
}

// Pool defaults.
const (
	DefaultMaxConns       = 10
	DefaultAcquireTimeout = 5 * time.Second
)

// WithDefaults fills unset pool limits.
func (p PoolConfig) WithDefaults() PoolConfig {
	if p.MaxConns <= 0 {
		p.MaxConns = DefaultMaxConns
	}
	if p.MaxIdleConns <= 0 || p.MaxIdleConns > p.MaxConns {
		p.MaxIdleConns = p.MaxConns
	}
	if p.AcquireTimeout <= 0 {
		p.AcquireTimeout = DefaultAcquireTimeout
	}
	return p
}
