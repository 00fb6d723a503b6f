// Package postgres provides the PostgreSQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import "github.com/leapstack-labs/leapgrid/pkg/core"

// Config is the PostgreSQL dialect configuration.
// This is pure data - accessible by both the client factory and the compiler.
var Config = &core.DialectConfig{
	Name:          "postgres",
	Aliases:       []string{"pg", "postgresql"},
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormLowercase, // Postgres normalizes unquoted to lowercase
	},

	Capabilities: core.Capabilities{
		RecursiveCTE:    true,
		WindowFunctions: true,
		JSONAggregate:   true,
		Ilike:           true,
		Returning:       true,
	},

	RecursiveKeyword: "WITH RECURSIVE",
	ListAggregate:    "json_agg(%s)::text",
	TextType:         "TEXT",
	LikeOperator:     "ILIKE",
	CurrentTimestamp: "NOW()",
	Concat:           core.ConcatOperator,
	TrueLiteral:      "TRUE",
	FalseLiteral:     "FALSE",

	Aggregates: []string{
		"SUM", "COUNT", "AVG", "MIN", "MAX",
		"ARRAY_AGG", "STRING_AGG", "JSON_AGG", "JSONB_AGG",
		"BOOL_AND", "BOOL_OR",
	},
}
