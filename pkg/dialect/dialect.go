// Package dialect provides SQL dialect configuration and capability resolution.
//
// This package contains the public contract for dialect definitions used by the
// SQL builder, the field handlers and the client factory. Concrete dialect
// definitions are registered from pkg/dialects/*/ packages.
package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// CapabilityRule adjusts a dialect's default capabilities for one source,
// e.g. from a server version option. Rules run before source overrides.
type CapabilityRule func(cfg core.SourceConfig, caps core.Capabilities) core.Capabilities

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Aliases     []string
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema string                // Default schema name ("main" for DuckDB, "public" for Postgres)
	Placeholder   core.PlaceholderStyle // How to format query parameters
	Capabilities  core.Capabilities     // Defaults before per-source rules and overrides

	recursiveKeyword string
	listAggregate    string
	textType         string
	likeOperator     string
	currentTimestamp string
	concat           core.ConcatStyle
	trueLiteral      string
	falseLiteral     string

	aggregates    map[string]struct{}
	reservedWords map[string]struct{}
	rules         []CapabilityRule
}

// Config returns the pure data configuration for this dialect.
func (d *Dialect) Config() *core.DialectConfig {
	aggregates := make([]string, 0, len(d.aggregates))
	for f := range d.aggregates {
		aggregates = append(aggregates, f)
	}
	reserved := make([]string, 0, len(d.reservedWords))
	for w := range d.reservedWords {
		reserved = append(reserved, w)
	}

	return &core.DialectConfig{
		Name:             d.Name,
		Aliases:          d.Aliases,
		Identifiers:      d.Identifiers,
		DefaultSchema:    d.DefaultSchema,
		Placeholder:      d.Placeholder,
		Capabilities:     d.Capabilities,
		RecursiveKeyword: d.recursiveKeyword,
		ListAggregate:    d.listAggregate,
		TextType:         d.textType,
		LikeOperator:     d.likeOperator,
		CurrentTimestamp: d.currentTimestamp,
		Concat:           d.concat,
		TrueLiteral:      d.trueLiteral,
		FalseLiteral:     d.falseLiteral,
		Aggregates:       aggregates,
		ReservedWords:    reserved,
	}
}

// GetName returns the dialect name.
func (d *Dialect) GetName() string {
	return d.Name
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case core.NormUppercase:
		return strings.ToUpper(name)
	case core.NormLowercase, core.NormCaseInsensitive:
		return strings.ToLower(name)
	default: // NormCaseSensitive
		return name
	}
}

// IsAggregate returns true if the function is an aggregate function.
func (d *Dialect) IsAggregate(name string) bool {
	_, ok := d.aggregates[strings.ToLower(name)]
	return ok
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar style.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier only if it's a reserved word.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

// QuoteString renders s as a single-quoted SQL string literal.
func (d *Dialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// RecursiveKeyword is the WITH form that allows a CTE to reference itself.
func (d *Dialect) RecursiveKeyword() string {
	return d.recursiveKeyword
}

// ListAggregate wraps expr in the dialect's list-to-text aggregate.
func (d *Dialect) ListAggregate(expr string) string {
	return fmt.Sprintf(d.listAggregate, expr)
}

// TextType is the type name used to cast values to text.
func (d *Dialect) TextType() string {
	return d.textType
}

// LikeOperator is the case-insensitive pattern match operator.
func (d *Dialect) LikeOperator() string {
	return d.likeOperator
}

// CurrentTimestamp is the expression for the current date and time.
func (d *Dialect) CurrentTimestamp() string {
	return d.currentTimestamp
}

// Concat reports how string concatenation is emitted.
func (d *Dialect) Concat() core.ConcatStyle {
	return d.concat
}

// BoolLiteral renders a boolean constant.
func (d *Dialect) BoolLiteral(v bool) string {
	if v {
		return d.trueLiteral
	}
	return d.falseLiteral
}

// ResolveCapabilities computes the capabilities of a source of this dialect:
// dialect defaults, then capability rules, then explicit source overrides.
func (d *Dialect) ResolveCapabilities(cfg core.SourceConfig) core.Capabilities {
	caps := d.Capabilities
	for _, rule := range d.rules {
		caps = rule(cfg, caps)
	}
	return cfg.Capabilities.Apply(caps)
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with ANSI defaults.
func NewDialect(name string) *Builder {
	return New(&core.DialectConfig{
		Name: name,
		Identifiers: core.IdentifierConfig{
			Quote:         `"`,
			QuoteEnd:      `"`,
			Escape:        `""`,
			Normalization: core.NormLowercase,
		},
		RecursiveKeyword: "WITH RECURSIVE",
		ListAggregate:    "STRING_AGG(%s, ',')",
		TextType:         "VARCHAR",
		LikeOperator:     "LIKE",
		CurrentTimestamp: "CURRENT_TIMESTAMP",
		TrueLiteral:      "TRUE",
		FalseLiteral:     "FALSE",
		Capabilities:     core.Capabilities{RecursiveCTE: true, WindowFunctions: true},
	})
}

// New creates a dialect builder from a DialectConfig.
// This is the preferred constructor for dialects defined as pure data.
func New(cfg *core.DialectConfig) *Builder {
	b := &Builder{
		dialect: &Dialect{
			Name:             cfg.Name,
			Aliases:          cfg.Aliases,
			Identifiers:      cfg.Identifiers,
			DefaultSchema:    cfg.DefaultSchema,
			Placeholder:      cfg.Placeholder,
			Capabilities:     cfg.Capabilities,
			recursiveKeyword: cfg.RecursiveKeyword,
			listAggregate:    cfg.ListAggregate,
			textType:         cfg.TextType,
			likeOperator:     cfg.LikeOperator,
			currentTimestamp: cfg.CurrentTimestamp,
			concat:           cfg.Concat,
			trueLiteral:      cfg.TrueLiteral,
			falseLiteral:     cfg.FalseLiteral,
			aggregates:       make(map[string]struct{}),
			reservedWords:    make(map[string]struct{}),
		},
	}
	b.Aggregates(cfg.Aggregates...)
	b.WithReservedWords(cfg.ReservedWords...)
	return b
}

// Identifiers configures identifier quoting and normalization.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, norm core.NormalizationStrategy) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{
		Quote:         quote,
		QuoteEnd:      quoteEnd,
		Escape:        escape,
		Normalization: norm,
	}
	return b
}

// Aggregates adds aggregate functions to the dialect.
func (b *Builder) Aggregates(funcs ...string) *Builder {
	for _, f := range funcs {
		b.dialect.aggregates[strings.ToLower(f)] = struct{}{}
	}
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// WithCapabilities replaces the default capabilities.
func (b *Builder) WithCapabilities(caps core.Capabilities) *Builder {
	b.dialect.Capabilities = caps
	return b
}

// ListAggregate sets the list-to-text aggregate template.
func (b *Builder) ListAggregate(template string) *Builder {
	b.dialect.listAggregate = template
	return b
}

// CapabilityRule appends a per-source capability rule.
func (b *Builder) CapabilityRule(rule CapabilityRule) *Builder {
	b.dialect.rules = append(b.dialect.rules, rule)
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
