// Package adapter provides the dialect client factory: a registry of database
// clients keyed by source type, TLS material handling and a per-source pool.
//
// This package contains the public contract that all clients must implement.
// Concrete client implementations are in pkg/adapters/ subdirectories and
// register themselves from init().
package adapter

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/dialect"
)

// Client defines the interface that all database clients must implement.
// A Client owns a pooled *sql.DB for one source together with the dialect
// and resolved capabilities used to compile SQL for it.
type Client interface {
	// Validate checks that cfg carries everything this client needs to connect.
	// It returns a *core.ConfigurationError on failure.
	Validate(cfg core.SourceConfig) error

	// Connect opens the connection pool using the provided config.
	Connect(ctx context.Context, cfg core.SourceConfig) error

	// Close closes the connection pool and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, query string, args ...any) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// DescribeTable returns the physical columns of a table.
	DescribeTable(ctx context.Context, table string) (*TableInfo, error)

	// Conn returns the underlying pool, or nil before Connect.
	Conn() *sql.DB

	// Dialect returns the SQL dialect of the source.
	Dialect() *dialect.Dialect

	// Capabilities returns the dialect defaults merged with per-source rules
	// and overrides.
	Capabilities() core.Capabilities
}

// Factory creates an unconnected client.
type Factory func(logger *slog.Logger) Client
