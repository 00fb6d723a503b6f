// Package sqlite provides the SQLite client backed by modernc.org/sqlite.
//
// The client is driver-agnostic: other SQLite-compatible drivers (libsql)
// reuse it through NewWithDriver with their own DSN builder.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	sqlitedialect "github.com/leapstack-labs/leapgrid/pkg/dialects/sqlite"

	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	adapter.Register(func(logger *slog.Logger) adapter.Client { return New(logger) },
		"sqlite", "sqlite3")
}

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DSNFunc builds a driver DSN from a source.
type DSNFunc func(cfg core.SourceConfig) (string, error)

// Client implements adapter.Client for SQLite-compatible databases.
type Client struct {
	adapter.BaseClient
	driver string
	dsn    DSNFunc
}

// New creates a SQLite client using the modernc driver.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Client {
	return NewWithDriver(logger, "sqlite", FileDSN)
}

// NewWithDriver creates a client that opens driver with DSNs built by dsn.
// The dialect and capabilities stay SQLite's.
func NewWithDriver(logger *slog.Logger, driver string, dsn DSNFunc) *Client {
	return &Client{
		BaseClient: adapter.NewBaseClient(sqlitedialect.SQLite, logger),
		driver:     driver,
		dsn:        dsn,
	}
}

// Validate checks the connection settings.
func (c *Client) Validate(cfg core.SourceConfig) error {
	if err := adapter.RequirePath(cfg); err != nil {
		return err
	}
	_, err := c.dsn(cfg)
	return err
}

// Connect opens the database. In-memory databases are limited to a single
// connection since every connection would otherwise see its own database.
func (c *Client) Connect(ctx context.Context, cfg core.SourceConfig) error {
	dsn, err := c.dsn(cfg)
	if err != nil {
		return err
	}

	c.Logger.Debug("opening sqlite database", slog.String("driver", c.driver), slog.String("path", cfg.Path))

	db, err := sql.Open(c.driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", c.driver, err)
	}

	if cfg.Path == MemoryPath {
		cfg.Pool.MaxConns = 1
		cfg.Pool.MaxIdleConns = 1
	}
	return c.Attach(ctx, db, cfg)
}

// DescribeTable reads column metadata with pragma_table_info, since SQLite
// has no information_schema.
func (c *Client) DescribeTable(ctx context.Context, table string) (*adapter.TableInfo, error) {
	if c.DB == nil {
		return nil, adapter.ErrNotConnected
	}

	rows, err := c.DB.QueryContext(ctx,
		`SELECT name, type, "notnull", cid, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []adapter.ColumnInfo
	for rows.Next() {
		var col adapter.ColumnInfo
		var notNull, cid, pk int
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &cid, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = notNull == 0
		col.Position = cid + 1
		col.PK = pk > 0
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, core.ErrNotFound)
	}

	return &adapter.TableInfo{
		Schema:  sqlitedialect.SQLite.DefaultSchema,
		Name:    table,
		Columns: columns,
	}, nil
}

// FileDSN builds a modernc DSN with foreign keys enforced and a busy timeout.
func FileDSN(cfg core.SourceConfig) (string, error) {
	if cfg.Path == MemoryPath {
		return MemoryPath, nil
	}
	return "file:" + cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
}

// Ensure Client implements adapter.Client interface
var _ adapter.Client = (*Client)(nil)
