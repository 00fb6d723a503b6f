// Package config loads the CLI configuration.
//
// Values are layered from lowest to highest precedence: built-in defaults,
// the leapgrid.yaml file, LEAPGRID_* environment variables and command-line
// flags.
package config

import (
	"time"

	sharedcfg "github.com/leapstack-labs/leapgrid/internal/config"
	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// Meta store drivers.
const (
	MetaDriverSQLite = "sqlite"
	MetaDriverMemory = "memory"
)

// Config holds all CLI configuration options.
type Config struct {
	Meta         MetaConfig                   `koanf:"meta"`
	Cache        CacheConfig                  `koanf:"cache"`
	Compiler     CompilerConfig               `koanf:"compiler"`
	Log          LogConfig                    `koanf:"log"`
	Sources      map[string]core.SourceConfig `koanf:"sources"`
	Verbose      bool                         `koanf:"verbose"`
	OutputFormat string                       `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// MetaConfig selects the metadata store.
type MetaConfig struct {
	Driver string `koanf:"driver"` // sqlite or memory
	Path   string `koanf:"path"`
	// Fixture is a YAML schema loaded into the store when it holds no sources.
	Fixture string `koanf:"fixture"`
}

// CacheConfig controls the metadata cache in front of the store.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	TTL     time.Duration `koanf:"ttl"`
}

// CompilerConfig tunes query compilation.
type CompilerConfig struct {
	DefaultLimit      int `koanf:"default_limit"`
	MaxLongTextLength int `koanf:"max_long_text_length"`
}

// LogConfig controls the stderr logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultConfigFile = sharedcfg.DefaultConfigFile
	DefaultMetaDriver = sharedcfg.DefaultMetaDriver
	DefaultMetaPath   = sharedcfg.DefaultMetaPath
	DefaultLogLevel   = sharedcfg.DefaultLogLevel
	DefaultLogFormat  = sharedcfg.DefaultLogFormat
	DefaultOutput     = sharedcfg.DefaultOutput // Auto-detect: TTY=table, non-TTY=json
)

// SourceOverride returns the connection settings configured for a source id,
// if any. They replace the settings stored with the source.
func (c *Config) SourceOverride(id string) (core.SourceConfig, bool) {
	cfg, ok := c.Sources[id]
	return cfg, ok
}
