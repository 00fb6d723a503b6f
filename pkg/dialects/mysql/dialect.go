package mysql

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/dialect"
)

func init() {
	dialect.Register(MySQL)
}

var mysqlReservedWords = []string{
	"add", "all", "alter", "and", "as", "asc", "between", "by", "case",
	"check", "column", "condition", "constraint", "create", "cross",
	"current_date", "current_time", "current_timestamp", "current_user",
	"database", "default", "delete", "desc", "distinct", "div", "drop",
	"else", "exists", "false", "for", "foreign", "from", "fulltext",
	"group", "having", "in", "index", "inner", "insert", "interval", "into",
	"is", "join", "key", "keys", "left", "like", "limit", "match", "not",
	"null", "on", "or", "order", "outer", "primary", "range", "rank",
	"references", "regexp", "right", "rows", "select", "set", "show",
	"table", "then", "to", "true", "union", "unique", "update", "usage",
	"using", "values", "when", "where", "window", "with",
}

// MySQL is the MySQL dialect.
var MySQL = dialect.New(Config).
	WithReservedWords(mysqlReservedWords...).
	CapabilityRule(serverVersionRule).
	Build()

// serverVersionRule narrows capabilities for MySQL servers older than 8.0,
// which lack recursive CTEs and window functions. The version comes from the
// "version" source option. MariaDB versions (10+) keep the defaults.
func serverVersionRule(cfg core.SourceConfig, caps core.Capabilities) core.Capabilities {
	major, ok := majorVersion(cfg.Options["version"])
	if !ok {
		return caps
	}
	if major < 8 {
		caps.RecursiveCTE = false
		caps.WindowFunctions = false
	}
	return caps
}

// majorVersion parses the leading number of a version string like "5.7.44-log".
func majorVersion(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	head, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return n, true
}
