package dialect

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPlaceholder(t *testing.T) {
	question := NewDialect("q").Build()
	dollar := NewDialect("d").PlaceholderStyle(core.PlaceholderDollar).Build()

	assert.Equal(t, "?", question.FormatPlaceholder(1))
	assert.Equal(t, "?", question.FormatPlaceholder(7))
	assert.Equal(t, "$1", dollar.FormatPlaceholder(1))
	assert.Equal(t, "$12", dollar.FormatPlaceholder(12))
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		dialect  *Dialect
		input    string
		expected string
	}{
		{
			name:     "double quotes",
			dialect:  NewDialect("ansi").Build(),
			input:    "order",
			expected: `"order"`,
		},
		{
			name:     "embedded double quote",
			dialect:  NewDialect("ansi").Build(),
			input:    `a"b`,
			expected: `"a""b"`,
		},
		{
			name:     "backticks",
			dialect:  NewDialect("bt").Identifiers("`", "`", "``", core.NormCaseSensitive).Build(),
			input:    "my`col",
			expected: "`my``col`",
		},
		{
			name:     "brackets",
			dialect:  NewDialect("br").Identifiers("[", "]", "]]", core.NormCaseInsensitive).Build(),
			input:    "a]b",
			expected: "[a]]b]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.QuoteIdentifier(tt.input))
		})
	}
}

func TestQuoteIdentifierIfNeeded(t *testing.T) {
	d := NewDialect("test").WithReservedWords("order", "USER").Build()

	assert.Equal(t, `"order"`, d.QuoteIdentifierIfNeeded("order"))
	assert.Equal(t, `"user"`, d.QuoteIdentifierIfNeeded("user"))
	assert.Equal(t, "name", d.QuoteIdentifierIfNeeded("name"))
}

func TestQuoteString(t *testing.T) {
	d := NewDialect("test").Build()
	assert.Equal(t, `'it''s'`, d.QuoteString("it's"))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		norm     core.NormalizationStrategy
		expected string
	}{
		{core.NormLowercase, "mytable"},
		{core.NormUppercase, "MYTABLE"},
		{core.NormCaseSensitive, "MyTable"},
		{core.NormCaseInsensitive, "mytable"},
	}

	for _, tt := range tests {
		d := NewDialect("n").Identifiers(`"`, `"`, `""`, tt.norm).Build()
		assert.Equal(t, tt.expected, d.NormalizeName("MyTable"))
	}
}

func TestListAggregate(t *testing.T) {
	d := NewDialect("test").ListAggregate("json_agg(%s)::text").Build()
	assert.Equal(t, `json_agg("t"."name")::text`, d.ListAggregate(`"t"."name"`))
}

func TestBoolLiteral(t *testing.T) {
	d := New(&core.DialectConfig{Name: "b", TrueLiteral: "1", FalseLiteral: "0"}).Build()
	assert.Equal(t, "1", d.BoolLiteral(true))
	assert.Equal(t, "0", d.BoolLiteral(false))
}

func TestResolveCapabilities(t *testing.T) {
	off := false
	d := NewDialect("caps").
		WithCapabilities(core.Capabilities{RecursiveCTE: true, WindowFunctions: true}).
		CapabilityRule(func(cfg core.SourceConfig, caps core.Capabilities) core.Capabilities {
			if cfg.Options["legacy"] == "true" {
				caps.WindowFunctions = false
			}
			return caps
		}).
		Build()

	t.Run("defaults", func(t *testing.T) {
		caps := d.ResolveCapabilities(core.SourceConfig{})
		assert.True(t, caps.RecursiveCTE)
		assert.True(t, caps.WindowFunctions)
	})

	t.Run("rule applies", func(t *testing.T) {
		caps := d.ResolveCapabilities(core.SourceConfig{Options: map[string]string{"legacy": "true"}})
		assert.True(t, caps.RecursiveCTE)
		assert.False(t, caps.WindowFunctions)
	})

	t.Run("override wins over default", func(t *testing.T) {
		caps := d.ResolveCapabilities(core.SourceConfig{
			Capabilities: core.CapabilityOverrides{RecursiveCTE: &off},
		})
		assert.False(t, caps.RecursiveCTE)
	})
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := &core.DialectConfig{
		Name:          "cfg",
		Aliases:       []string{"c"},
		DefaultSchema: "main",
		Aggregates:    []string{"SUM"},
		ListAggregate: "list(%s)",
	}
	d := New(cfg).Build()

	out := d.Config()
	assert.Equal(t, "cfg", out.Name)
	assert.Equal(t, []string{"c"}, out.Aliases)
	assert.Equal(t, "list(%s)", out.ListAggregate)
	assert.Equal(t, []string{"sum"}, out.Aggregates)
	assert.True(t, d.IsAggregate("Sum"))
}

func TestRegistryAliases(t *testing.T) {
	d := NewDialect("registry_test_dialect").Build()
	d.Aliases = []string{"rtd"}
	Register(d)

	got, ok := Get("RTD")
	require.True(t, ok)
	assert.Same(t, d, got)

	got, ok = Get("registry_test_dialect")
	require.True(t, ok)
	assert.Same(t, d, got)

	assert.Contains(t, List(), "registry_test_dialect")
	assert.NotContains(t, List(), "rtd", "aliases are not listed")
}

func TestForSource(t *testing.T) {
	Register(NewDialect("for_source_test").Build())

	t.Run("missing type", func(t *testing.T) {
		_, _, err := ForSource(core.SourceConfig{})
		var cfgErr *core.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "type", cfgErr.Field)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, _, err := ForSource(core.SourceConfig{Type: "oracle"})
		var unsupported *core.UnsupportedDialectError
		require.True(t, errors.As(err, &unsupported))
		assert.Equal(t, "oracle", unsupported.Type)
		assert.Contains(t, unsupported.Available, "for_source_test")
	})

	t.Run("known type", func(t *testing.T) {
		d, caps, err := ForSource(core.SourceConfig{Type: "for_source_test"})
		require.NoError(t, err)
		assert.Equal(t, "for_source_test", d.Name)
		assert.True(t, caps.RecursiveCTE)
	})
}
