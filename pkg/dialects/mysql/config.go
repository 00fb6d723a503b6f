// Package mysql provides the MySQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package mysql

import "github.com/leapstack-labs/leapgrid/pkg/core"

// Config is the MySQL dialect configuration. Capabilities describe MySQL 8;
// older servers are narrowed by the version rule.
var Config = &core.DialectConfig{
	Name:          "mysql",
	Aliases:       []string{"mysql2", "mariadb"},
	DefaultSchema: "",
	Placeholder:   core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:         "`",
		QuoteEnd:      "`",
		Escape:        "``",
		Normalization: core.NormCaseSensitive,
	},

	Capabilities: core.Capabilities{
		RecursiveCTE:    true,
		WindowFunctions: true,
		JSONAggregate:   true,
	},

	RecursiveKeyword: "WITH RECURSIVE",
	ListAggregate:    "CAST(JSON_ARRAYAGG(%s) AS NCHAR)",
	TextType:         "CHAR",
	LikeOperator:     "LIKE",
	CurrentTimestamp: "NOW()",
	Concat:           core.ConcatFunction,
	TrueLiteral:      "1",
	FalseLiteral:     "0",

	Aggregates: []string{
		"SUM", "COUNT", "AVG", "MIN", "MAX",
		"GROUP_CONCAT", "JSON_ARRAYAGG", "JSON_OBJECTAGG",
		"BIT_AND", "BIT_OR", "BIT_XOR",
	},
}
