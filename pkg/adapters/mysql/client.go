// Package mysql provides the MySQL and MariaDB client.
//
// Import this package with a blank identifier to register the client:
//
//	import _ "github.com/leapstack-labs/leapgrid/pkg/adapters/mysql"
package mysql

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	mysqldialect "github.com/leapstack-labs/leapgrid/pkg/dialects/mysql"
)

func init() {
	adapter.Register(func(logger *slog.Logger) adapter.Client { return New(logger) },
		"mysql", "mysql2", "mariadb")
}

// Client implements adapter.Client for MySQL.
type Client struct {
	adapter.BaseClient
}

// New creates a new MySQL client instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Client {
	return &Client{BaseClient: adapter.NewBaseClient(mysqldialect.MySQL, logger)}
}

// Validate checks the connection settings.
func (c *Client) Validate(cfg core.SourceConfig) error {
	if err := adapter.RequireNetwork(cfg); err != nil {
		return err
	}
	if _, err := buildMySQLConfig(cfg); err != nil {
		return err
	}
	return nil
}

// Connect opens a pool through a go-sql-driver connector.
func (c *Client) Connect(ctx context.Context, cfg core.SourceConfig) error {
	mc, err := buildMySQLConfig(cfg)
	if err != nil {
		return err
	}

	tlsCfg, err := adapter.TLSConfig(cfg.SSL, hostOf(cfg))
	if err != nil {
		return err
	}
	mc.TLS = tlsCfg

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return core.ErrConfiguration("options", "invalid connection settings: %v", err)
	}

	c.Logger.Debug("connecting to mysql",
		slog.String("addr", mc.Addr),
		slog.String("database", mc.DBName),
		slog.Bool("tls", tlsCfg != nil))

	if err := c.Attach(ctx, sql.OpenDB(connector), cfg); err != nil {
		return err
	}
	c.detectServerVersion(ctx)
	return nil
}

// detectServerVersion records VERSION() as options.version so capability
// rules see the real server. An explicit options.version wins. A failed
// lookup keeps the dialect defaults.
func (c *Client) detectServerVersion(ctx context.Context) {
	if _, ok := c.Cfg.Options["version"]; ok {
		return
	}

	var version string
	if err := c.DB.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		c.Logger.Warn("failed to read mysql server version", slog.String("error", err.Error()))
		return
	}

	cfg := c.Cfg
	cfg.Options = make(map[string]string, len(c.Cfg.Options)+1)
	for k, v := range c.Cfg.Options {
		cfg.Options[k] = v
	}
	cfg.Options["version"] = version
	c.Reconfigure(cfg)

	caps := c.Capabilities()
	c.Logger.Debug("detected mysql server version",
		slog.String("version", version),
		slog.Bool("recursive_cte", caps.RecursiveCTE),
		slog.Bool("window_functions", caps.WindowFunctions))
}

func hostOf(cfg core.SourceConfig) string {
	if cfg.Host == "" {
		return "localhost"
	}
	return cfg.Host
}

// buildMySQLConfig maps a source onto the driver config. Dates are parsed
// into time.Time in UTC.
func buildMySQLConfig(cfg core.SourceConfig) (*mysql.Config, error) {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(hostOf(cfg), strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC

	if v, ok := cfg.Options["collation"]; ok {
		mc.Collation = v
	}
	if v, ok := cfg.Options["timeout"]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, core.ErrConfiguration("options.timeout", "invalid duration %q", v)
		}
		mc.Timeout = d
	}
	return mc, nil
}

// Ensure Client implements adapter.Client interface
var _ adapter.Client = (*Client)(nil)
