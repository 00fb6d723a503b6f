package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMySQLConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   core.SourceConfig
		wantAddr string
		wantErr  string
	}{
		{
			name:     "defaults",
			config:   core.SourceConfig{Database: "app"},
			wantAddr: "localhost:3306",
		},
		{
			name: "explicit host and port",
			config: core.SourceConfig{
				Host:     "db.internal",
				Port:     3307,
				Database: "app",
				User:     "root",
				Password: "secret",
			},
			wantAddr: "db.internal:3307",
		},
		{
			name: "ipv6 host",
			config: core.SourceConfig{
				Host:     "::1",
				Database: "app",
			},
			wantAddr: "[::1]:3306",
		},
		{
			name: "bad timeout",
			config: core.SourceConfig{
				Database: "app",
				Options:  map[string]string{"timeout": "soon"},
			},
			wantErr: "options.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc, err := buildMySQLConfig(tt.config)
			if tt.wantErr != "" {
				var cfgErr *core.ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, tt.wantErr, cfgErr.Field)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, mc.Addr)
			assert.Equal(t, "tcp", mc.Net)
			assert.Equal(t, tt.config.Database, mc.DBName)
			assert.Equal(t, tt.config.User, mc.User)
			assert.Equal(t, tt.config.Password, mc.Passwd)
			assert.True(t, mc.ParseTime)
			assert.Equal(t, time.UTC, mc.Loc)
		})
	}
}

func TestBuildMySQLConfigOptions(t *testing.T) {
	mc, err := buildMySQLConfig(core.SourceConfig{
		Database: "app",
		Options: map[string]string{
			"collation": "utf8mb4_general_ci",
			"timeout":   "3s",
			"version":   "5.7",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "utf8mb4_general_ci", mc.Collation)
	assert.Equal(t, 3*time.Second, mc.Timeout)
	assert.Empty(t, mc.Params, "unknown options are not sent as session variables")
}

func TestMySQLRegistered(t *testing.T) {
	client, err := adapter.NewClient(core.SourceConfig{Type: "mariadb", Database: "app"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mysql", client.Dialect().Name)

	_, err = adapter.NewClient(core.SourceConfig{Type: "mysql"}, nil)
	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "database", cfgErr.Field)
}

func TestDetectServerVersion(t *testing.T) {
	tests := []struct {
		name        string
		options     map[string]string
		version     string
		queryErr    error
		wantVersion string
		wantCTE     bool
	}{
		{
			name:        "mysql 8",
			version:     "8.0.36",
			wantVersion: "8.0.36",
			wantCTE:     true,
		},
		{
			name:        "mysql 5.7",
			version:     "5.7.44-log",
			wantVersion: "5.7.44-log",
			wantCTE:     false,
		},
		{
			name:        "mariadb",
			version:     "10.11.6-MariaDB",
			wantVersion: "10.11.6-MariaDB",
			wantCTE:     true,
		},
		{
			name:        "configured version wins",
			options:     map[string]string{"version": "5.6"},
			wantVersion: "5.6",
			wantCTE:     false,
		},
		{
			name:     "lookup failure keeps defaults",
			queryErr: errors.New("access denied"),
			wantCTE:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			switch {
			case tt.queryErr != nil:
				mock.ExpectQuery("SELECT VERSION()").WillReturnError(tt.queryErr)
			case tt.version != "":
				mock.ExpectQuery("SELECT VERSION()").
					WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(tt.version))
			}

			c := New(nil)
			c.DB = db
			c.Reconfigure(core.SourceConfig{Type: "mysql", Database: "app", Options: tt.options})

			c.detectServerVersion(context.Background())

			assert.Equal(t, tt.wantVersion, c.Cfg.Options["version"])
			assert.Equal(t, tt.wantCTE, c.Capabilities().RecursiveCTE)
			assert.Equal(t, tt.wantCTE, c.Capabilities().WindowFunctions)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDetectServerVersion_DoesNotMutateOptions(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	mock.ExpectQuery("SELECT VERSION()").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("5.7.44"))

	options := map[string]string{"collation": "utf8mb4_general_ci"}
	c := New(nil)
	c.DB = db
	c.Reconfigure(core.SourceConfig{Type: "mysql", Database: "app", Options: options})
	c.detectServerVersion(context.Background())

	assert.Equal(t, "5.7.44", c.Cfg.Options["version"])
	assert.NotContains(t, options, "version")
}
