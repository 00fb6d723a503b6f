package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	intconfig "github.com/leapstack-labs/leapgrid/internal/config"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
// This key is shared with root.go via both using the same type.
type loggerKey struct{}

// EnvPrefix prefixes every environment variable the loader reads.
// A double underscore separates nested keys: LEAPGRID_LOG__LEVEL sets log.level.
const EnvPrefix = "LEAPGRID_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configFileNames = []string{"leapgrid.yaml", "leapgrid.yml"}

// flagKeys maps flags whose names differ from their config keys.
var flagKeys = map[string]string{
	"meta":        "meta.path",
	"meta-driver": "meta.driver",
	"fixture":     "meta.fixture",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"no-cache":    "cache.enabled",
}

// FlagKey returns the config key a global flag sets.
func FlagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// configIn returns the config file in dir, if any.
func configIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a leapgrid config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if path := configIn(dir); path != "" {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
//
// Without an explicit cfgFile the loader searches upward from the working
// directory. Relative paths in the file resolve against the file's directory.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		cwd = "."
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"meta.driver":            DefaultMetaDriver,
		"meta.path":              DefaultMetaPath,
		"cache.enabled":          intconfig.DefaultCacheEnabled,
		"cache.ttl":              "0s",
		"compiler.default_limit": intconfig.DefaultLimit,
		"log.level":              DefaultLogLevel,
		"log.format":             DefaultLogFormat,
		"verbose":                false,
		"output":                 DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	configFileUsed = cfgFile
	projectRoot := cwd
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Load environment variables (LEAPGRID_ prefix)
	// Transform: LEAPGRID_LOG__LEVEL -> log.level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Flag paths are relative to the working directory, not the config file.
	var flagMeta, flagFixture string
	if flags != nil {
		flagMeta = changedPath(flags, "meta")
		flagFixture = changedPath(flags, "fixture")
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key := FlagKey(f.Name)
			if f.Name == "no-cache" {
				noCache, _ := flags.GetBool("no-cache")
				return key, !noCache
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve paths
	cfg.ProjectRoot = projectRoot
	if flagMeta != "" {
		cfg.Meta.Path = flagMeta
	} else {
		cfg.Meta.Path = resolvePathRelativeTo(cfg.Meta.Path, projectRoot)
	}
	if flagFixture != "" {
		cfg.Meta.Fixture = flagFixture
	} else {
		cfg.Meta.Fixture = resolvePathRelativeTo(cfg.Meta.Fixture, projectRoot)
	}
	cfg.Meta.Driver = strings.ToLower(strings.TrimSpace(cfg.Meta.Driver))

	for id, src := range cfg.Sources {
		intconfig.ApplySourceDefaults(&src)
		expandSourceEnvVars(&src)
		if src.Path != "" && src.Path != ":memory:" && !strings.Contains(src.Path, "://") {
			src.Path = resolvePathRelativeTo(src.Path, projectRoot)
		}
		cfg.Sources[id] = src
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// changedPath returns the absolute value of a path flag the user set.
func changedPath(flags *pflag.FlagSet, name string) string {
	if flags.Lookup(name) == nil || !flags.Changed(name) {
		return ""
	}
	v, _ := flags.GetString(name)
	if v == "" || v == ":memory:" {
		return v
	}
	if abs, err := filepath.Abs(v); err == nil {
		return abs
	}
	return v
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandSourceEnvVars expands environment variables in the connection fields
// that usually carry secrets.
func expandSourceEnvVars(cfg *core.SourceConfig) {
	cfg.Password = expandEnvVars(cfg.Password)
	cfg.User = expandEnvVars(cfg.User)
	cfg.Host = expandEnvVars(cfg.Host)
	cfg.Database = expandEnvVars(cfg.Database)
	cfg.Path = expandEnvVars(cfg.Path)
}
