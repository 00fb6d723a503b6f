package sqlite

import (
	"github.com/leapstack-labs/leapgrid/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

var sqliteReservedWords = []string{
	"abort", "action", "add", "all", "alter", "and", "as", "asc", "between",
	"by", "case", "check", "collate", "column", "constraint", "create",
	"cross", "default", "delete", "desc", "distinct", "drop", "else", "end",
	"escape", "except", "exists", "foreign", "from", "full", "glob", "group",
	"having", "in", "index", "inner", "insert", "intersect", "into", "is",
	"isnull", "join", "key", "left", "like", "limit", "match", "natural",
	"not", "notnull", "null", "offset", "on", "or", "order", "outer",
	"primary", "references", "regexp", "right", "select", "set", "table",
	"then", "to", "union", "unique", "update", "using", "values", "when",
	"where", "with",
}

// SQLite is the SQLite dialect.
var SQLite = dialect.New(Config).
	WithReservedWords(sqliteReservedWords...).
	Build()
