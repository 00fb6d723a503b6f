package adapter_test

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import client packages to ensure clients are registered via init()
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/libsql"
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/sqlite"
)

func TestIsRegistered(t *testing.T) {
	tests := []struct {
		name       string
		sourceType string
		expected   bool
	}{
		{"postgres registered", "postgres", true},
		{"pg alias registered", "pg", true},
		{"mysql registered", "mysql", true},
		{"mysql2 alias registered", "mysql2", true},
		{"sqlite registered", "sqlite", true},
		{"sqlite3 alias registered", "sqlite3", true},
		{"libsql registered", "libsql", true},
		{"duckdb registered", "duckdb", true},
		{"unknown not registered", "oracle", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.IsRegistered(tt.sourceType)
			assert.Equal(t, tt.expected, got, "IsRegistered(%q)", tt.sourceType)
		})
	}
}

func TestNewClient_DialectPerType(t *testing.T) {
	tests := []struct {
		cfg         core.SourceConfig
		wantDialect string
	}{
		{core.SourceConfig{Type: "postgres", Database: "app"}, "postgres"},
		{core.SourceConfig{Type: "mysql", Database: "app"}, "mysql"},
		{core.SourceConfig{Type: "sqlite", Path: ":memory:"}, "sqlite"},
		{core.SourceConfig{Type: "libsql", Path: "libsql://x.turso.io"}, "sqlite"},
		{core.SourceConfig{Type: "duckdb", Path: ":memory:"}, "duckdb"},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			client, err := adapter.NewClient(tt.cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDialect, client.Dialect().Name)
		})
	}
}

func TestNewClient_UnknownType(t *testing.T) {
	_, err := adapter.NewClient(core.SourceConfig{Type: "unknown_db"}, nil)
	require.Error(t, err)

	var unsupported *core.UnsupportedDialectError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "unknown_db", unsupported.Type)
	assert.Contains(t, unsupported.Available, "duckdb")
	assert.Contains(t, unsupported.Available, "postgres")
}

func TestPool_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	pool := adapter.NewPool(nil)
	defer func() { _ = pool.Close() }()

	src := &core.Source{ID: "mem", Config: core.SourceConfig{Type: "sqlite", Path: ":memory:"}}
	client, release, err := pool.Acquire(ctx, src)
	require.NoError(t, err)
	defer release()

	require.NoError(t, client.Exec(ctx, "CREATE TABLE t (id INTEGER)"))
	require.NoError(t, client.Exec(ctx, "INSERT INTO t VALUES (?)", 1))

	var n int
	require.NoError(t, client.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 1, n)
}
