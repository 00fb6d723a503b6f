// Package duckdb provides the DuckDB client.
//
// Import this package with a blank identifier to register the client:
//
//	import _ "github.com/leapstack-labs/leapgrid/pkg/adapters/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sort"

	"github.com/marcboeker/go-duckdb"

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	duckdialect "github.com/leapstack-labs/leapgrid/pkg/dialects/duckdb"
)

func init() {
	adapter.Register(func(logger *slog.Logger) adapter.Client { return New(logger) }, "duckdb")
}

// Client implements adapter.Client for DuckDB.
type Client struct {
	adapter.BaseClient
}

// New creates a new DuckDB client instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Client {
	return &Client{BaseClient: adapter.NewBaseClient(duckdialect.DuckDB, logger)}
}

// Validate checks the connection settings and params.
func (c *Client) Validate(cfg core.SourceConfig) error {
	if err := adapter.RequirePath(cfg); err != nil {
		return err
	}
	if _, err := parseParams(cfg.Params); err != nil {
		return core.ErrConfiguration("params", "%v", err)
	}
	return nil
}

// Connect opens DuckDB. Settings run on every new connection; extensions and
// secrets are set up once for the database.
// Use ":memory:" as the path for an in-memory database.
func (c *Client) Connect(ctx context.Context, cfg core.SourceConfig) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return core.ErrConfiguration("params", "%v", err)
	}

	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	settings := settingStatements(params.Settings)
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		for _, stmt := range settings {
			if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
				return fmt.Errorf("failed to apply setting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := c.Attach(ctx, sql.OpenDB(connector), cfg); err != nil {
		return err
	}

	for _, ext := range params.Extensions {
		c.Logger.Debug("loading duckdb extension", slog.String("extension", ext))
		if err := c.Exec(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			_ = c.Close()
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}
	for _, secret := range params.Secrets {
		if err := c.Exec(ctx, buildCreateSecretSQL(secret)); err != nil {
			_ = c.Close()
			return fmt.Errorf("failed to create %s secret: %w", secret.Type, err)
		}
	}
	return nil
}

// settingStatements renders SET statements in a stable order.
func settingStatements(settings map[string]string) []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stmts := make([]string, len(keys))
	for i, k := range keys {
		stmts[i] = fmt.Sprintf("SET %s = %s", k, quote(settings[k]))
	}
	return stmts
}

// Ensure Client implements adapter.Client interface
var _ adapter.Client = (*Client)(nil)
