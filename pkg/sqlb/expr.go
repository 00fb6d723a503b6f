package sqlb

import (
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// Expr is a SQL fragment that can render itself into a Builder.
type Expr interface {
	AppendSQL(b *Builder)
}

// ExprFunc adapts a function to the Expr interface.
type ExprFunc func(b *Builder)

// AppendSQL implements Expr.
func (f ExprFunc) AppendSQL(b *Builder) { f(b) }

// Raw is SQL text emitted verbatim.
type Raw string

// AppendSQL implements Expr.
func (r Raw) AppendSQL(b *Builder) { b.WriteString(string(r)) }

// Null is the NULL literal.
var Null Expr = Raw("NULL")

// Star selects all columns.
var Star Expr = Raw("*")

// Ident is a single quoted identifier.
func Ident(name string) Expr {
	return ExprFunc(func(b *Builder) { b.Ident(name) })
}

// C is a column reference qualified by a table alias. An empty alias yields
// an unqualified column.
func C(alias, column string) Expr {
	return ExprFunc(func(b *Builder) {
		if alias != "" {
			b.Ident(alias).WriteString(".")
		}
		b.Ident(column)
	})
}

// Arg binds v as a statement argument.
func Arg(v any) Expr {
	return ExprFunc(func(b *Builder) { b.Arg(v) })
}

// Int is an inline integer literal.
func Int(n int) Expr {
	return ExprFunc(func(b *Builder) { b.Int(n) })
}

// Bool is the dialect's boolean literal.
func Bool(v bool) Expr {
	return ExprFunc(func(b *Builder) { b.WriteString(b.Dialect().BoolLiteral(v)) })
}

// Now is the dialect's current timestamp expression.
func Now() Expr {
	return ExprFunc(func(b *Builder) { b.WriteString(b.Dialect().CurrentTimestamp()) })
}

// Func is a function call.
func Func(name string, args ...Expr) Expr {
	return ExprFunc(func(b *Builder) {
		b.WriteString(name).WriteString("(")
		b.Join(args, ", ")
		b.WriteString(")")
	})
}

// Distinct is a function call whose single argument is DISTINCT, as used by
// aggregates.
func Distinct(name string, arg Expr) Expr {
	return ExprFunc(func(b *Builder) {
		b.WriteString(name).WriteString("(DISTINCT ")
		b.Append(arg)
		b.WriteString(")")
	})
}

// Template renders format with each "%s" replaced by the next arg.
func Template(format string, args ...Expr) Expr {
	return ExprFunc(func(b *Builder) {
		parts := strings.Split(format, "%s")
		for i, part := range parts {
			b.WriteString(part)
			if i < len(parts)-1 && i < len(args) {
				b.Append(args[i])
			}
		}
	})
}

// Cast converts e to the named type.
func Cast(e Expr, typ string) Expr {
	return ExprFunc(func(b *Builder) {
		b.WriteString("CAST(")
		b.Append(e)
		b.WriteString(" AS ").WriteString(typ).WriteString(")")
	})
}

// CastText converts e to the dialect's text type.
func CastText(e Expr) Expr {
	return ExprFunc(func(b *Builder) {
		Cast(e, b.Dialect().TextType()).AppendSQL(b)
	})
}

// ListAgg aggregates e into a single text value using the dialect's list
// aggregate.
func ListAgg(e Expr) Expr {
	return ExprFunc(func(b *Builder) {
		Template(b.Dialect().ListAggregate("%s"), e).AppendSQL(b)
	})
}

// Concat joins the text value of args.
func Concat(args ...Expr) Expr {
	return ExprFunc(func(b *Builder) {
		if b.Dialect().Concat() == core.ConcatFunction {
			Func("CONCAT", args...).AppendSQL(b)
			return
		}
		b.WriteString("(")
		b.Join(args, " || ")
		b.WriteString(")")
	})
}

// Coalesce returns the first non-null argument.
func Coalesce(args ...Expr) Expr {
	return Func("COALESCE", args...)
}

// Paren wraps e in parentheses.
func Paren(e Expr) Expr {
	return ExprFunc(func(b *Builder) {
		b.WriteString("(")
		b.Append(e)
		b.WriteString(")")
	})
}

// Binary renders "l op r".
func Binary(l Expr, op string, r Expr) Expr {
	return ExprFunc(func(b *Builder) {
		b.Append(l)
		b.WriteString(" ").WriteString(op).WriteString(" ")
		b.Append(r)
	})
}

// EQ renders l = r.
func EQ(l, r Expr) Expr { return Binary(l, "=", r) }

// NEQ renders l <> r.
func NEQ(l, r Expr) Expr { return Binary(l, "<>", r) }

// GT renders l > r.
func GT(l, r Expr) Expr { return Binary(l, ">", r) }

// GTE renders l >= r.
func GTE(l, r Expr) Expr { return Binary(l, ">=", r) }

// LT renders l < r.
func LT(l, r Expr) Expr { return Binary(l, "<", r) }

// LTE renders l <= r.
func LTE(l, r Expr) Expr { return Binary(l, "<=", r) }

// Like renders a case-insensitive pattern match using the dialect's operator.
func Like(e, pattern Expr) Expr {
	return ExprFunc(func(b *Builder) {
		Binary(e, b.Dialect().LikeOperator(), pattern).AppendSQL(b)
	})
}

// NotLike negates Like.
func NotLike(e, pattern Expr) Expr {
	return ExprFunc(func(b *Builder) {
		Binary(e, "NOT "+b.Dialect().LikeOperator(), pattern).AppendSQL(b)
	})
}

// IsNull renders "e IS NULL".
func IsNull(e Expr) Expr {
	return ExprFunc(func(b *Builder) {
		b.Append(e)
		b.WriteString(" IS NULL")
	})
}

// NotNull renders "e IS NOT NULL".
func NotNull(e Expr) Expr {
	return ExprFunc(func(b *Builder) {
		b.Append(e)
		b.WriteString(" IS NOT NULL")
	})
}

// In renders "e IN (...)" with every value bound. An empty list is false.
func In(e Expr, values ...any) Expr {
	return ExprFunc(func(b *Builder) {
		if len(values) == 0 {
			b.WriteString("1 = 0")
			return
		}
		b.Append(e)
		b.WriteString(" IN (")
		for i, v := range values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Arg(v)
		}
		b.WriteString(")")
	})
}

// InQuery renders "e IN (subquery)".
func InQuery(e Expr, sub *Selector) Expr {
	return ExprFunc(func(b *Builder) {
		b.Append(e)
		b.WriteString(" IN (")
		sub.AppendSQL(b)
		b.WriteString(")")
	})
}

// And joins the non-nil predicates with AND. It returns nil when none remain.
func And(preds ...Expr) Expr {
	return logical("AND", preds)
}

// Or joins the non-nil predicates with OR. It returns nil when none remain.
func Or(preds ...Expr) Expr {
	return logical("OR", preds)
}

func logical(op string, preds []Expr) Expr {
	kept := make([]Expr, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return ExprFunc(func(b *Builder) {
		b.WriteString("(")
		b.Join(kept, " "+op+" ")
		b.WriteString(")")
	})
}

// Not negates p.
func Not(p Expr) Expr {
	return ExprFunc(func(b *Builder) {
		b.WriteString("NOT (")
		b.Append(p)
		b.WriteString(")")
	})
}

// When is one branch of a CASE expression.
type When struct {
	Cond Expr
	Then Expr
}

// Case renders a searched CASE expression. A nil els omits the ELSE branch.
func Case(whens []When, els Expr) Expr {
	return ExprFunc(func(b *Builder) {
		b.WriteString("CASE")
		for _, w := range whens {
			b.WriteString(" WHEN ")
			b.Append(w.Cond)
			b.WriteString(" THEN ")
			b.Append(w.Then)
		}
		if els != nil {
			b.WriteString(" ELSE ")
			b.Append(els)
		}
		b.WriteString(" END")
	})
}

// Sub renders a parenthesized scalar subquery.
func Sub(s *Selector) Expr {
	return ExprFunc(func(b *Builder) {
		b.WriteString("(")
		s.AppendSQL(b)
		b.WriteString(")")
	})
}

// Exists renders "EXISTS (subquery)".
func Exists(s *Selector) Expr {
	return ExprFunc(func(b *Builder) {
		b.WriteString("EXISTS (")
		s.AppendSQL(b)
		b.WriteString(")")
	})
}
