// Package sqlite provides the SQLite SQL dialect definition, shared by
// SQLite files and libsql databases.
// This package is pure Go with no database driver dependencies.
package sqlite

import "github.com/leapstack-labs/leapgrid/pkg/core"

// Config is the SQLite dialect configuration.
var Config = &core.DialectConfig{
	Name:          "sqlite",
	Aliases:       []string{"sqlite3", "libsql"},
	DefaultSchema: "main",
	Placeholder:   core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormCaseInsensitive,
	},

	Capabilities: core.Capabilities{
		RecursiveCTE:    true,
		WindowFunctions: true,
		Returning:       true,
	},

	RecursiveKeyword: "WITH RECURSIVE",
	ListAggregate:    "group_concat(%s, '___')",
	TextType:         "TEXT",
	LikeOperator:     "LIKE",
	CurrentTimestamp: "CURRENT_TIMESTAMP",
	Concat:           core.ConcatOperator,
	TrueLiteral:      "1",
	FalseLiteral:     "0",

	Aggregates: []string{
		"SUM", "COUNT", "AVG", "MIN", "MAX", "TOTAL", "GROUP_CONCAT",
	},
}

// ListSeparator splits values aggregated by ListAggregate.
const ListSeparator = "___"
