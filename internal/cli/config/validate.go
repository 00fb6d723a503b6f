package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validOutputs    = []string{"auto", "table", "json", "text"}
)

// Validate checks if the configuration is valid.
//
// Source types are checked against the registered clients, so callers must
// import the adapters they expect to configure.
func (c *Config) Validate() error {
	if !oneOf(c.Log.Level, validLogLevels) {
		return fmt.Errorf("invalid log level %q (valid: %s)", c.Log.Level, strings.Join(validLogLevels, ", "))
	}
	if !oneOf(c.Log.Format, validLogFormats) {
		return fmt.Errorf("invalid log format %q (valid: %s)", c.Log.Format, strings.Join(validLogFormats, ", "))
	}
	if !oneOf(c.OutputFormat, validOutputs) {
		return fmt.Errorf("invalid output format %q (valid: %s)", c.OutputFormat, strings.Join(validOutputs, ", "))
	}
	switch c.Meta.Driver {
	case MetaDriverSQLite:
		if c.Meta.Path == "" {
			return fmt.Errorf("meta.path is required for the %s meta driver", MetaDriverSQLite)
		}
	case MetaDriverMemory:
		if c.Meta.Fixture == "" {
			return fmt.Errorf("meta.fixture is required for the %s meta driver", MetaDriverMemory)
		}
	default:
		return fmt.Errorf("invalid meta driver %q (valid: %s, %s)", c.Meta.Driver, MetaDriverSQLite, MetaDriverMemory)
	}
	if c.Compiler.DefaultLimit < 0 {
		return fmt.Errorf("compiler.default_limit must not be negative, got %d", c.Compiler.DefaultLimit)
	}
	if c.Compiler.MaxLongTextLength < 0 {
		return fmt.Errorf("compiler.max_long_text_length must not be negative, got %d", c.Compiler.MaxLongTextLength)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}

	for id, src := range c.Sources {
		if src.Type == "" {
			return &core.ConfigurationError{SourceID: id, Field: "type", Message: "source type not specified"}
		}
		if !adapter.IsRegistered(src.Type) {
			msg := fmt.Sprintf("unknown source type %q (available: %s)\nHint: check the sources section of %s",
				src.Type, strings.Join(adapter.ListClients(), ", "), DefaultConfigFile)
			return &core.ConfigurationError{SourceID: id, Field: "type", Message: msg}
		}
	}
	return nil
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
