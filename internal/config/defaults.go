// Package config holds defaults shared by every tool that reads source
// connection settings.
package config

import (
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// Default configuration values.
const (
	DefaultConfigFile   = "leapgrid.yaml"
	DefaultMetaDriver   = "sqlite"
	DefaultMetaPath     = ".leapgrid/meta.db"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultOutput       = "auto"
	DefaultLimit        = 25
	DefaultCacheEnabled = true
)

// defaultPorts are the well-known ports of network sources.
var defaultPorts = map[string]int{
	"postgres": 5432,
	"mysql":    3306,
}

// ApplySourceDefaults normalizes the type of cfg and fills the port of
// network sources. The schema is left alone: an empty schema means the
// connection default.
func ApplySourceDefaults(cfg *core.SourceConfig) {
	if cfg == nil {
		return
	}
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if cfg.Port == 0 && cfg.Host != "" {
		cfg.Port = defaultPorts[cfg.Type]
	}
}
