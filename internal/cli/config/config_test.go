package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgrid/pkg/core"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/sqlite"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "leapgrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("meta", "", "meta store path")
	flags.String("fixture", "", "schema fixture")
	flags.String("log-level", "", "log level")
	flags.Bool("no-cache", false, "disable the metadata cache")
	flags.BoolP("verbose", "v", false, "verbose")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Empty(t, GetConfigFileUsed())
	assert.Equal(t, MetaDriverSQLite, cfg.Meta.Driver)
	assert.Equal(t, filepath.Join(cwd, DefaultMetaPath), cfg.Meta.Path)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 25, cfg.Compiler.DefaultLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	t.Setenv("TEST_PG_PASSWORD", "secret123")

	path := writeConfig(t, `
meta:
  path: data/meta.db
  fixture: schema.yaml
cache:
  ttl: 90s
compiler:
  default_limit: 50
  max_long_text_length: 200
log:
  format: json
sources:
  main:
    type: SQLite
    path: data/app.db
  warehouse:
    type: postgres
    host: db.internal
    user: reader
    password: ${TEST_PG_PASSWORD}
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	root := filepath.Dir(path)
	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, "data/meta.db"), cfg.Meta.Path)
	assert.Equal(t, filepath.Join(root, "schema.yaml"), cfg.Meta.Fixture)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 50, cfg.Compiler.DefaultLimit)
	assert.Equal(t, 200, cfg.Compiler.MaxLongTextLength)
	assert.Equal(t, "json", cfg.Log.Format)

	main, ok := cfg.SourceOverride("main")
	require.True(t, ok)
	assert.Equal(t, "sqlite", main.Type)
	assert.Equal(t, filepath.Join(root, "data/app.db"), main.Path)

	wh, ok := cfg.SourceOverride("warehouse")
	require.True(t, ok)
	assert.Equal(t, 5432, wh.Port)
	assert.Equal(t, "reader", wh.User)
	assert.Equal(t, "secret123", wh.Password)

	_, ok = cfg.SourceOverride("missing")
	assert.False(t, ok)
}

func TestLoadConfig_UpwardSearch(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "compiler:\n  default_limit: 11\n")
	nested := filepath.Join(filepath.Dir(path), "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.Compiler.DefaultLimit)
	assert.Equal(t, filepath.Dir(path), cfg.ProjectRoot)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\ncompiler:\n  default_limit: 10\n")

	t.Run("env overrides file", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LEAPGRID_LOG__LEVEL", "error")

		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.Log.Level)
		assert.Equal(t, 10, cfg.Compiler.DefaultLimit)
	})

	t.Run("flag overrides env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LEAPGRID_LOG__LEVEL", "error")
		flags := testFlags()
		require.NoError(t, flags.Set("log-level", "debug"))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 10, cfg.Compiler.DefaultLimit)
	})

	t.Run("unset flag falls back to env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LEAPGRID_LOG__LEVEL", "error")

		cfg, err := LoadConfig(path, testFlags())
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.Log.Level)
	})

	t.Run("no-cache disables cache", func(t *testing.T) {
		ResetConfig()
		flags := testFlags()
		require.NoError(t, flags.Set("no-cache", "true"))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.False(t, cfg.Cache.Enabled)
	})

	t.Run("meta flag is relative to the working directory", func(t *testing.T) {
		ResetConfig()
		dir := t.TempDir()
		t.Chdir(dir)
		flags := testFlags()
		require.NoError(t, flags.Set("meta", "other.db"))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		cwd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cwd, "other.db"), cfg.Meta.Path)
	})
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{"log level", "log:\n  level: loud\n", "invalid log level"},
		{"log format", "log:\n  format: xml\n", "invalid log format"},
		{"output", "output: csv\n", "invalid output format"},
		{"meta driver", "meta:\n  driver: redis\n", "invalid meta driver"},
		{"memory without fixture", "meta:\n  driver: memory\n", "meta.fixture is required"},
		{"negative limit", "compiler:\n  default_limit: -1\n", "must not be negative"},
		{"missing source type", "sources:\n  main:\n    path: x.db\n", "source type not specified"},
		{"unknown source type", "sources:\n  main:\n    type: oracle\n", "unknown source type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
			assert.Nil(t, GetCurrentConfig())
		})
	}
}

func TestValidate_SourceErrorCarriesID(t *testing.T) {
	cfg := &Config{
		Meta:         MetaConfig{Driver: MetaDriverSQLite, Path: "meta.db"},
		Log:          LogConfig{Level: "info", Format: "text"},
		OutputFormat: "auto",
		Sources:      map[string]core.SourceConfig{"wh": {Type: "oracle"}},
	}

	err := cfg.Validate()
	var cfgErr *core.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "wh", cfgErr.SourceID)
	assert.Equal(t, "type", cfgErr.Field)
	assert.Contains(t, cfgErr.Message, "sqlite", "error should list available clients")
	assert.Contains(t, cfgErr.Message, DefaultConfigFile)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single variable", "${TEST_VAR_ONE}", "value_one"},
		{"multiple variables", "${TEST_VAR_ONE}/${TEST_VAR_TWO}", "value_one/value_two"},
		{"unset variable stays as-is", "${UNSET_VARIABLE}", "${UNSET_VARIABLE}"},
		{"no variables", "plain string", "plain string"},
		{"mixed set and unset", "${TEST_VAR_ONE}:${UNSET_VAR}", "value_one:${UNSET_VAR}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "meta.path", FlagKey("meta"))
	assert.Equal(t, "cache.enabled", FlagKey("no-cache"))
	assert.Equal(t, "output", FlagKey("output"))
	assert.Equal(t, "default_limit", FlagKey("default-limit"))
}
