// Package libsql provides the libsql (Turso) client.
//
// libsql speaks the SQLite dialect, so the client is the SQLite client with the
// libsql driver and a URL DSN substituted.
package libsql

import (
	"log/slog"
	"net/url"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // libsql driver

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapgrid/pkg/core"
)

func init() {
	adapter.Register(func(logger *slog.Logger) adapter.Client { return New(logger) }, "libsql")
}

var allowedSchemes = map[string]bool{
	"libsql": true,
	"https":  true,
	"http":   true,
	"wss":    true,
	"ws":     true,
	"file":   true,
}

// New creates a libsql client.
func New(logger *slog.Logger) *sqlite.Client {
	return sqlite.NewWithDriver(logger, "libsql", DSN)
}

// DSN builds the libsql URL. The auth token comes from the password or the
// auth_token option.
func DSN(cfg core.SourceConfig) (string, error) {
	u, err := url.Parse(cfg.Path)
	if err != nil {
		return "", core.ErrConfiguration("path", "invalid libsql url: %v", err)
	}
	if !allowedSchemes[u.Scheme] {
		return "", core.ErrConfiguration("path", "libsql url must use libsql, https, wss or file scheme, got %q", u.Scheme)
	}

	token := cfg.Password
	if token == "" {
		token = cfg.Options["auth_token"]
	}
	if token != "" && u.Scheme != "file" {
		q := u.Query()
		q.Set("authToken", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
