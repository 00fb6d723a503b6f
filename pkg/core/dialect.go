package core

// DialectConfig holds the static configuration for a SQL dialect.
// This is pure data with no handler functions.
//
// The runtime behavior (capability rules, fragment templates) lives in
// pkg/dialect.Dialect, which is built from this config.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "postgres", "sqlite")
	Name string

	// Aliases are alternative source type strings that select this dialect ("pg", "sqlite3")
	Aliases []string

	// Identifiers defines quoting and normalization rules
	Identifiers IdentifierConfig

	// DefaultSchema is the default schema name ("main" for DuckDB, "public" for Postgres)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// Capabilities are the defaults for a source of this dialect before overrides
	Capabilities Capabilities

	// SQL fragment templates. A "%s" marks the operand slot.
	// ListAggregate folds many related values into one text cell, TextType is
	// the target of CAST(x AS ...), LikeOperator is the case-insensitive LIKE.
	RecursiveKeyword string
	ListAggregate    string
	TextType         string
	LikeOperator     string
	CurrentTimestamp string
	Concat           ConcatStyle
	TrueLiteral      string
	FalseLiteral     string

	// Function classifications (normalized names)
	Aggregates []string

	// ReservedWords need quoting when used as identifiers
	ReservedWords []string
}

// Capabilities describes what a connected source can execute.
type Capabilities struct {
	RecursiveCTE    bool `koanf:"recursive_cte" json:"recursive_cte"`
	WindowFunctions bool `koanf:"window_functions" json:"window_functions"`
	JSONAggregate   bool `koanf:"json_aggregate" json:"json_aggregate"`
	Ilike           bool `koanf:"ilike" json:"ilike"`
	Returning       bool `koanf:"returning" json:"returning"`
}

// CapabilityOverrides selectively replaces dialect default capabilities for one source.
// A nil field keeps the dialect default.
type CapabilityOverrides struct {
	RecursiveCTE    *bool `koanf:"recursive_cte" json:"recursive_cte,omitempty" yaml:"recursive_cte,omitempty"`
	WindowFunctions *bool `koanf:"window_functions" json:"window_functions,omitempty" yaml:"window_functions,omitempty"`
	JSONAggregate   *bool `koanf:"json_aggregate" json:"json_aggregate,omitempty" yaml:"json_aggregate,omitempty"`
}

// Apply returns caps with every non-nil override applied.
func (o CapabilityOverrides) Apply(caps Capabilities) Capabilities {
	if o.RecursiveCTE != nil {
		caps.RecursiveCTE = *o.RecursiveCTE
	}
	if o.WindowFunctions != nil {
		caps.WindowFunctions = *o.WindowFunctions
	}
	if o.JSONAggregate != nil {
		caps.JSONAggregate = *o.JSONAggregate
	}
	return caps
}

// Intersect keeps the capabilities both c and o report.
func (c Capabilities) Intersect(o Capabilities) Capabilities {
	return Capabilities{
		RecursiveCTE:    c.RecursiveCTE && o.RecursiveCTE,
		WindowFunctions: c.WindowFunctions && o.WindowFunctions,
		JSONAggregate:   c.JSONAggregate && o.JSONAggregate,
		Ilike:           c.Ilike && o.Ilike,
		Returning:       c.Returning && o.Returning,
	}
}

// ConcatStyle selects how string concatenation is emitted.
type ConcatStyle int

const (
	// ConcatOperator uses the ANSI || operator (Postgres, SQLite, DuckDB).
	ConcatOperator ConcatStyle = iota
	// ConcatFunction uses CONCAT(a, b, ...) (MySQL, where || is logical OR).
	ConcatFunction
)

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase (Snowflake, Oracle).
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly (MySQL).
	NormCaseSensitive
	// NormCaseInsensitive normalizes to lowercase for comparison (SQLite, DuckDB).
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `, [
	QuoteEnd      string                // End quote character (usually same as Quote, ] for [)
	Escape        string                // Escape sequence: "", ``, ]]
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}
