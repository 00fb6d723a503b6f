package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/dialect"
)

// ErrNotConnected is returned when a client is used before Connect.
var ErrNotConnected = errors.New("database connection not established")

// BaseClient provides common database/sql functionality for clients.
// Embed this struct in concrete client implementations to get standard
// Close, Exec, Query and capability handling.
type BaseClient struct {
	DB     *sql.DB
	Cfg    core.SourceConfig
	Logger *slog.Logger

	dialect *dialect.Dialect
	caps    core.Capabilities
}

// NewBaseClient creates a base client for d. A nil logger discards output.
func NewBaseClient(d *dialect.Dialect, logger *slog.Logger) BaseClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return BaseClient{Logger: logger, dialect: d, caps: d.Capabilities}
}

// Dialect returns the SQL dialect of the source.
func (b *BaseClient) Dialect() *dialect.Dialect {
	return b.dialect
}

// Capabilities returns the resolved capabilities. Before Connect these are
// the dialect defaults.
func (b *BaseClient) Capabilities() core.Capabilities {
	return b.caps
}

// Conn returns the underlying pool.
func (b *BaseClient) Conn() *sql.DB {
	return b.DB
}

// Attach installs db as the client's pool: it applies pool limits, resolves
// capabilities for cfg and verifies the connection with a ping.
func (b *BaseClient) Attach(ctx context.Context, db *sql.DB, cfg core.SourceConfig) error {
	pool := cfg.Pool.WithDefaults()
	db.SetMaxOpenConns(pool.MaxConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s database: %w", b.dialect.Name, err)
	}

	b.DB = db
	b.Cfg = cfg
	b.caps = b.dialect.ResolveCapabilities(cfg)
	b.Logger.Debug("connected",
		slog.String("dialect", b.dialect.Name),
		slog.Int("max_conns", pool.MaxConns),
		slog.Bool("recursive_cte", b.caps.RecursiveCTE))
	return nil
}

// Reconfigure replaces the source configuration of a connected client and
// resolves its capabilities again. Clients call it once they learn
// something about the server that the configuration did not say.
func (b *BaseClient) Reconfigure(cfg core.SourceConfig) {
	b.Cfg = cfg
	b.caps = b.dialect.ResolveCapabilities(cfg)
}

// Close closes the database connection.
func (b *BaseClient) Close() error {
	if b.DB != nil {
		b.Logger.Debug("closing database connection", slog.String("dialect", b.dialect.Name))
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// Exec executes a statement that doesn't return rows.
func (b *BaseClient) Exec(ctx context.Context, query string, args ...any) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if _, err := b.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a statement that returns rows.
func (b *BaseClient) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseClient) IsConnected() bool {
	return b.DB != nil
}

// RequireNetwork validates the fields every network database needs.
func RequireNetwork(cfg core.SourceConfig) error {
	if cfg.Database == "" {
		return core.ErrConfiguration("database", "%s sources require a database name", cfg.Type)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return core.ErrConfiguration("port", "port %d out of range", cfg.Port)
	}
	return nil
}

// RequirePath validates the fields every file database needs. ":memory:" is
// accepted as a path.
func RequirePath(cfg core.SourceConfig) error {
	if cfg.Path == "" {
		return core.ErrConfiguration("path", "%s sources require a path (or :memory:)", cfg.Type)
	}
	return nil
}

// ColumnInfo describes one physical column.
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
	Position int
	PK       bool
}

// TableInfo describes a physical table.
type TableInfo struct {
	Schema  string
	Name    string
	Columns []ColumnInfo
}

// splitTableName splits a table reference into schema and name.
// The schema falls back to the source schema, then the dialect default, then
// the database name (MySQL schemas are databases).
func (b *BaseClient) splitTableName(table string) (schema, name string) {
	if parts := strings.SplitN(table, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	switch {
	case b.Cfg.Schema != "":
		return b.Cfg.Schema, table
	case b.dialect.DefaultSchema != "":
		return b.dialect.DefaultSchema, table
	}
	return b.Cfg.Database, table
}

// DescribeTable reads column metadata from information_schema. Doctor uses
// it to compare models with their physical tables.
func (b *BaseClient) DescribeTable(ctx context.Context, table string) (*TableInfo, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	schema, tableName := b.splitTableName(table)

	//nolint:gosec // Placeholders are safe - they come from dialect.FormatPlaceholder
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, b.dialect.FormatPlaceholder(1), b.dialect.FormatPlaceholder(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, core.ErrNotFound)
	}

	return &TableInfo{Schema: schema, Name: tableName, Columns: columns}, nil
}
