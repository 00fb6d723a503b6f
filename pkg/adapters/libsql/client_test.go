package libsql

import (
	"testing"

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   core.SourceConfig
		expected string
		wantErr  bool
	}{
		{
			name:     "remote without token",
			config:   core.SourceConfig{Path: "libsql://db-org.turso.io"},
			expected: "libsql://db-org.turso.io",
		},
		{
			name:     "token from password",
			config:   core.SourceConfig{Path: "libsql://db-org.turso.io", Password: "tok"},
			expected: "libsql://db-org.turso.io?authToken=tok",
		},
		{
			name: "token from option",
			config: core.SourceConfig{
				Path:    "https://db-org.turso.io",
				Options: map[string]string{"auth_token": "abc"},
			},
			expected: "https://db-org.turso.io?authToken=abc",
		},
		{
			name:     "local file ignores token",
			config:   core.SourceConfig{Path: "file:/tmp/local.db", Password: "tok"},
			expected: "file:/tmp/local.db",
		},
		{
			name:    "missing scheme",
			config:  core.SourceConfig{Path: "/tmp/local.db"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := DSN(tt.config)
			if tt.wantErr {
				var cfgErr *core.ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, "path", cfgErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, dsn)
		})
	}
}

func TestLibSQLUsesSQLiteDialect(t *testing.T) {
	client, err := adapter.NewClient(core.SourceConfig{Type: "libsql", Path: "libsql://db-org.turso.io"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", client.Dialect().Name)
	assert.True(t, client.Capabilities().RecursiveCTE)

	_, err = adapter.NewClient(core.SourceConfig{Type: "libsql", Path: "ftp://nope"}, nil)
	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
