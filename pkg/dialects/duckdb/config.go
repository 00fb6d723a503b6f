// Package duckdb provides the DuckDB SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import "github.com/leapstack-labs/leapgrid/pkg/core"

// Config is the DuckDB dialect configuration.
var Config = &core.DialectConfig{
	Name:          "duckdb",
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
		JSONAggregate:   true,
		Ilike:           true,
		Returning:       true,
	},

	RecursiveKeyword: "WITH RECURSIVE",
	ListAggregate:    "CAST(to_json(list(%s)) AS VARCHAR)",
	TextType:         "VARCHAR",
	LikeOperator:     "ILIKE",
	CurrentTimestamp: "now()",
	Concat:           core.ConcatOperator,
	TrueLiteral:      "true",
	FalseLiteral:     "false",

	Aggregates: []string{
		"SUM", "COUNT", "AVG", "MIN", "MAX",
		"LIST", "ARRAY_AGG", "STRING_AGG", "GROUP_CONCAT",
		"FIRST", "LAST", "ANY_VALUE", "BOOL_AND", "BOOL_OR",
	},
}
