// Package postgres provides the PostgreSQL client.
//
// Import this package with a blank identifier to register the client:
//
//	import _ "github.com/leapstack-labs/leapgrid/pkg/adapters/postgres"
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	pgdialect "github.com/leapstack-labs/leapgrid/pkg/dialects/postgres"
)

func init() {
	adapter.Register(func(logger *slog.Logger) adapter.Client { return New(logger) },
		"postgres", "pg", "postgresql")
}

// passthroughOptions are source options forwarded to the connection string.
var passthroughOptions = []string{"application_name", "connect_timeout", "statement_timeout", "target_session_attrs"}

// Client implements adapter.Client for PostgreSQL.
type Client struct {
	adapter.BaseClient
}

// New creates a new PostgreSQL client instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Client {
	return &Client{BaseClient: adapter.NewBaseClient(pgdialect.Postgres, logger)}
}

// Validate checks the connection settings.
func (c *Client) Validate(cfg core.SourceConfig) error {
	return adapter.RequireNetwork(cfg)
}

// Connect opens a pgx-backed pool. Inline TLS material replaces whatever
// sslmode alone would configure.
func (c *Client) Connect(ctx context.Context, cfg core.SourceConfig) error {
	pgCfg, err := pgx.ParseConfig(buildPostgresDSN(cfg))
	if err != nil {
		return core.ErrConfiguration("options", "invalid connection settings: %v", err)
	}

	tlsCfg, err := adapter.TLSConfig(cfg.SSL, pgCfg.Host)
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		pgCfg.TLSConfig = tlsCfg
		pgCfg.Fallbacks = nil
	}
	if cfg.Schema != "" {
		pgCfg.RuntimeParams["search_path"] = cfg.Schema
	}

	c.Logger.Debug("connecting to postgres",
		slog.String("host", pgCfg.Host),
		slog.String("database", pgCfg.Database),
		slog.Bool("tls", pgCfg.TLSConfig != nil))

	return c.Attach(ctx, stdlib.OpenDB(*pgCfg), cfg)
}

// buildPostgresDSN constructs a keyword/value connection string.
func buildPostgresDSN(cfg core.SourceConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}
	if cfg.SSL != nil && cfg.SSL.Mode != "" {
		sslmode = cfg.SSL.Mode
	}

	parts := []string{
		"host=" + quoteValue(host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + quoteValue(cfg.Database),
		"sslmode=" + quoteValue(sslmode),
	}
	if cfg.User != "" {
		parts = append(parts, "user="+quoteValue(cfg.User))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+quoteValue(cfg.Password))
	}

	var extra []string
	for _, key := range passthroughOptions {
		if v, ok := cfg.Options[key]; ok {
			extra = append(extra, key+"="+quoteValue(v))
		}
	}
	sort.Strings(extra)

	return strings.Join(append(parts, extra...), " ")
}

// quoteValue quotes a keyword/value connection string value when needed.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Ensure Client implements adapter.Client interface
var _ adapter.Client = (*Client)(nil)
