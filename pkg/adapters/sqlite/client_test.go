package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *Client {
	t.Helper()
	client := New(nil)
	require.NoError(t, client.Connect(context.Background(), core.SourceConfig{Type: "sqlite", Path: MemoryPath}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name: "in-memory",
			setupPath: func(_ *testing.T) string {
				return MemoryPath
			},
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "test.db")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			client := New(nil)

			dbPath := tt.setupPath(t)
			require.NoError(t, client.Connect(ctx, core.SourceConfig{Type: "sqlite", Path: dbPath}))
			defer func() { _ = client.Close() }()

			require.NoError(t, client.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)"))
			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestClient_NotConnected(t *testing.T) {
	ctx := context.Background()
	client := New(nil)

	assert.ErrorIs(t, client.Exec(ctx, "SELECT 1"), adapter.ErrNotConnected)
	_, err := client.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	_, err = client.DescribeTable(ctx, "t")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.NoError(t, client.Close())
}

func TestClient_QueryWithArgs(t *testing.T) {
	ctx := context.Background()
	client := connect(t)

	require.NoError(t, client.Exec(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`))
	require.NoError(t, client.Exec(ctx, `INSERT INTO users (name) VALUES (?), (?), (?)`, "alice", "bob", "carol"))

	rows, err := client.Query(ctx, `SELECT name FROM users WHERE id > ? ORDER BY id`, 1)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"bob", "carol"}, names)
}

func TestClient_ForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	client := New(nil)
	path := filepath.Join(t.TempDir(), "fk.db")
	require.NoError(t, client.Connect(ctx, core.SourceConfig{Type: "sqlite", Path: path}))
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Exec(ctx, `CREATE TABLE parent (id INTEGER PRIMARY KEY)`))
	require.NoError(t, client.Exec(ctx, `CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id))`))
	assert.Error(t, client.Exec(ctx, `INSERT INTO child (parent_id) VALUES (42)`))
}

func TestClient_DescribeTable(t *testing.T) {
	ctx := context.Background()
	client := connect(t)

	require.NoError(t, client.Exec(ctx, `
		CREATE TABLE products (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			price REAL
		)
	`))
	require.NoError(t, client.Exec(ctx, `INSERT INTO products (name, price) VALUES ('Widget', 9.99), ('Gadget', 19.99)`))

	info, err := client.DescribeTable(ctx, "products")
	require.NoError(t, err)

	assert.Equal(t, "products", info.Name)
	require.Len(t, info.Columns, 3)

	assert.Equal(t, adapter.ColumnInfo{Name: "id", Type: "INTEGER", Nullable: true, Position: 1, PK: true}, info.Columns[0])
	assert.Equal(t, adapter.ColumnInfo{Name: "name", Type: "TEXT", Nullable: false, Position: 2}, info.Columns[1])
	assert.Equal(t, "REAL", info.Columns[2].Type)

	_, err = client.DescribeTable(ctx, "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestSQLiteRegistered(t *testing.T) {
	client, err := adapter.NewClient(core.SourceConfig{Type: "sqlite3", Path: MemoryPath}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", client.Dialect().Name)

	_, err = adapter.NewClient(core.SourceConfig{Type: "sqlite"}, nil)
	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "path", cfgErr.Field)
}

func TestFileDSN(t *testing.T) {
	dsn, err := FileDSN(core.SourceConfig{Path: MemoryPath})
	require.NoError(t, err)
	assert.Equal(t, MemoryPath, dsn)

	dsn, err = FileDSN(core.SourceConfig{Path: "/data/app.db"})
	require.NoError(t, err)
	assert.Equal(t, "file:/data/app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dsn)
}
