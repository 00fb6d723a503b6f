// Package sqlb builds dialect-correct SQL statements from composable fragments.
//
// Fragments (Expr) are rendered into a Builder, which owns the statement text
// and its bind arguments. Placeholders are numbered in rendering order, so a
// statement can mix fragments produced by independent field handlers and
// still bind correctly under both "?" and "$N" placeholder styles.
package sqlb

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/dialect"
)

// Builder accumulates SQL text and bind arguments for one statement.
type Builder struct {
	d    *dialect.Dialect
	sb   strings.Builder
	args []any
}

// NewBuilder returns a builder rendering for d.
func NewBuilder(d *dialect.Dialect) *Builder {
	return &Builder{d: d}
}

// Dialect returns the target dialect.
func (b *Builder) Dialect() *dialect.Dialect {
	return b.d
}

// WriteString appends raw SQL text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Ident appends a quoted identifier.
func (b *Builder) Ident(name string) *Builder {
	b.sb.WriteString(b.d.QuoteIdentifier(name))
	return b
}

// Arg appends a placeholder bound to v.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	b.sb.WriteString(b.d.FormatPlaceholder(len(b.args)))
	return b
}

// Int appends an integer literal.
func (b *Builder) Int(n int) *Builder {
	b.sb.WriteString(strconv.Itoa(n))
	return b
}

// Append renders e into the builder. Nil expressions render as NULL.
func (b *Builder) Append(e Expr) *Builder {
	if e == nil {
		b.sb.WriteString("NULL")
		return b
	}
	e.AppendSQL(b)
	return b
}

// Join renders exprs separated by sep.
func (b *Builder) Join(exprs []Expr, sep string) *Builder {
	for i, e := range exprs {
		if i > 0 {
			b.sb.WriteString(sep)
		}
		b.Append(e)
	}
	return b
}

// String returns the SQL text rendered so far.
func (b *Builder) String() string {
	return b.sb.String()
}

// Args returns the bind arguments in placeholder order.
func (b *Builder) Args() []any {
	return b.args
}

// Render builds e as a standalone statement for d.
func Render(d *dialect.Dialect, e Expr) (string, []any) {
	b := NewBuilder(d)
	b.Append(e)
	return b.String(), b.Args()
}
