package fieldhandler

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// comparison tunes compare for one column type.
type comparison struct {
	// textual columns treat '' as blank and match patterns without a cast.
	textual bool
	// bind converts a filter value to the bound argument. Nil binds as is.
	bind func(v any) (any, error)
}

func (c comparison) arg(v any) (sqlb.Expr, error) {
	if c.bind == nil {
		return sqlb.Arg(v), nil
	}
	b, err := c.bind(v)
	if err != nil {
		return nil, err
	}
	return sqlb.Arg(b), nil
}

// compare builds the predicate of f applied to e, the expression of col.
func compare(col *core.Column, e sqlb.Expr, f core.Filter, c comparison) (sqlb.Expr, error) {
	switch f.Op {
	case core.OpEq, core.OpNeq:
		if f.Value == nil {
			if f.Op == core.OpEq {
				return sqlb.IsNull(e), nil
			}
			return sqlb.NotNull(e), nil
		}
		arg, err := c.arg(f.Value)
		if err != nil {
			return nil, err
		}
		if f.Op == core.OpEq {
			return sqlb.EQ(e, arg), nil
		}
		return sqlb.Or(sqlb.NEQ(e, arg), sqlb.IsNull(e)), nil

	case core.OpLike, core.OpNotLike:
		pattern := sqlb.Arg("%" + fmt.Sprint(f.Value) + "%")
		target := e
		if !c.textual {
			target = sqlb.CastText(e)
		}
		if f.Op == core.OpLike {
			return sqlb.Like(target, pattern), nil
		}
		return sqlb.Or(sqlb.NotLike(target, pattern), sqlb.IsNull(e)), nil

	case core.OpGt, core.OpGte, core.OpLt, core.OpLte:
		if f.Value == nil {
			return nil, core.ErrInvalidValue(col, f.Value, "comparison %q needs a value", f.Op)
		}
		arg, err := c.arg(f.Value)
		if err != nil {
			return nil, err
		}
		switch f.Op {
		case core.OpGt:
			return sqlb.GT(e, arg), nil
		case core.OpGte:
			return sqlb.GTE(e, arg), nil
		case core.OpLt:
			return sqlb.LT(e, arg), nil
		}
		return sqlb.LTE(e, arg), nil

	case core.OpBlank:
		if c.textual {
			return sqlb.Or(sqlb.IsNull(e), sqlb.EQ(e, sqlb.Raw("''"))), nil
		}
		return sqlb.IsNull(e), nil

	case core.OpNotBlank:
		if c.textual {
			return sqlb.And(sqlb.NotNull(e), sqlb.NEQ(e, sqlb.Raw("''"))), nil
		}
		return sqlb.NotNull(e), nil

	case core.OpIn:
		values := listValue(f.Value)
		bound := make([]any, 0, len(values))
		for _, v := range values {
			if c.bind != nil {
				b, err := c.bind(v)
				if err != nil {
					return nil, err
				}
				v = b
			}
			bound = append(bound, v)
		}
		return sqlb.In(e, bound...), nil
	}
	return nil, core.ErrInvalidValue(col, f.Value, "unsupported comparison %q", f.Op)
}

// listValue returns the elements of an "in" filter value. Strings are split
// on commas.
func listValue(v any) []any {
	switch l := v.(type) {
	case nil:
		return nil
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	case string:
		var out []any
		for _, s := range strings.Split(l, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []any{v}
}

// isTextual reports whether values of ui are compared as text.
func isTextual(ui core.UIType) bool {
	switch ui {
	case core.UITypeSingleLineText, core.UITypeLongText, core.UITypeEmail, core.UITypeURL,
		core.UITypePhoneNumber, core.UITypeSingleSelect, core.UITypeMultiSelect, core.UITypeJSON:
		return true
	}
	return false
}
