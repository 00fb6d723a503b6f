package fieldhandler

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/formula"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// formulaField evaluates a formula in SQL. Column references compile
// through their own handlers, so a formula over a lookup reads the looked-up
// value.
type formulaField struct {
	generic
}

func (formulaField) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	return rejectWrite(col, value)
}

func (formulaField) BuildSelect(env *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	opts := col.Options.Formula
	if opts == nil || opts.Expression == "" {
		return nil, core.Unresolved(col.ID, "formula missing")
	}
	if opts.Error != "" {
		return nil, core.Unresolved(col.ID, "invalid formula: %s", opts.Error)
	}
	n, err := env.parseFormula(col, "formula:"+col.ID, opts.Expression)
	if err != nil {
		return nil, err
	}
	return env.compileFormula(col, n, alias)
}

func (formulaField) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	return filterColumn(env, col, alias, f, comparison{})
}

// compileFormula translates n, evaluated on the row of col's model aliased
// alias.
func (e *Env) compileFormula(col *core.Column, n formula.Node, alias string) (sqlb.Expr, error) {
	switch n := n.(type) {
	case *formula.Literal:
		switch v := n.Value.(type) {
		case string:
			return sqlb.Arg(v), nil
		case int64:
			return sqlb.Raw(strconv.FormatInt(v, 10)), nil
		case float64:
			return sqlb.Raw(strconv.FormatFloat(v, 'g', -1, 64)), nil
		case bool:
			return sqlb.Bool(v), nil
		}
		return nil, core.Unresolved(col.ID, "unsupported literal %T", n.Value)

	case *formula.Ref:
		ref := formula.MatchColumn(n.Name, e.Meta.ModelColumns(col.ModelID))
		if ref == nil {
			return nil, core.Unresolved(col.ID, "column %q not found", n.Name)
		}
		return e.resolve(ref, alias)

	case *formula.Unary:
		x, err := e.compileFormula(col, n.X, alias)
		if err != nil {
			return nil, err
		}
		if n.Op == formula.OpNeg {
			return sqlb.Template("-(%s)", x), nil
		}
		return sqlb.Not(x), nil

	case *formula.Binary:
		x, err := e.compileFormula(col, n.X, alias)
		if err != nil {
			return nil, err
		}
		y, err := e.compileFormula(col, n.Y, alias)
		if err != nil {
			return nil, err
		}
		return binaryFormula(n.Op, x, y), nil

	case *formula.Call:
		args := make([]sqlb.Expr, len(n.Args))
		for i, a := range n.Args {
			arg, err := e.compileFormula(col, a, alias)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return e.callFormula(col, n.Name, args)
	}
	return nil, core.Unresolved(col.ID, "unsupported formula node %T", n)
}

func binaryFormula(op formula.Op, x, y sqlb.Expr) sqlb.Expr {
	switch op {
	case formula.OpConcat:
		return sqlb.Concat(textOrEmpty(x), textOrEmpty(y))
	case formula.OpDiv:
		return sqlb.Paren(sqlb.Binary(sqlb.Binary(x, "*", sqlb.Raw("1.0")), "/", sqlb.Func("NULLIF", y, sqlb.Int(0))))
	case formula.OpNeq:
		return sqlb.Paren(sqlb.NEQ(x, y))
	case formula.OpAnd:
		return sqlb.And(x, y)
	case formula.OpOr:
		return sqlb.Or(x, y)
	}
	return sqlb.Paren(sqlb.Binary(x, string(op), y))
}

func textOrEmpty(e sqlb.Expr) sqlb.Expr {
	return sqlb.Coalesce(sqlb.CastText(e), sqlb.Raw("''"))
}

func (e *Env) callFormula(col *core.Column, name string, args []sqlb.Expr) (sqlb.Expr, error) {
	switch name {
	case "CONCAT":
		parts := make([]sqlb.Expr, len(args))
		for i, a := range args {
			parts[i] = textOrEmpty(a)
		}
		return sqlb.Concat(parts...), nil
	case "UPPER", "LOWER", "TRIM", "ABS", "COALESCE":
		return sqlb.Func(name, args...), nil
	case "LEN":
		if e.Dialect.Name == "mysql" {
			return sqlb.Func("CHAR_LENGTH", args...), nil
		}
		return sqlb.Func("LENGTH", args...), nil
	case "ROUND":
		x := args[0]
		if e.Dialect.Name == "postgres" {
			x = sqlb.Cast(x, "NUMERIC")
		}
		digits := sqlb.Expr(sqlb.Int(0))
		if len(args) > 1 {
			digits = args[1]
		}
		return sqlb.Func("ROUND", x, digits), nil
	case "IF":
		var els sqlb.Expr = sqlb.Null
		if len(args) > 2 {
			els = args[2]
		}
		return sqlb.Case([]sqlb.When{{Cond: args[0], Then: args[1]}}, els), nil
	case "AND":
		return sqlb.And(args...), nil
	case "OR":
		return sqlb.Or(args...), nil
	case "NOT":
		return sqlb.Not(args[0]), nil
	case "BLANK":
		return sqlb.Or(sqlb.IsNull(args[0]), sqlb.EQ(sqlb.CastText(args[0]), sqlb.Raw("''"))), nil
	case "NOW":
		return sqlb.Now(), nil
	}
	return nil, core.Unresolved(col.ID, "unknown function %s", name)
}

// barcode encodes the value of another column of the same row.
type barcode struct {
	generic
}

func (barcode) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	return rejectWrite(col, value)
}

func (barcode) BuildSelect(env *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	opts := col.Options.Barcode
	if opts == nil {
		return nil, core.Unresolved(col.ID, "barcode options missing")
	}
	src, ok := env.Meta.Column(opts.ValueColumnID)
	if !ok || src.ModelID != col.ModelID {
		return nil, core.Unresolved(col.ID, "value column %s not found", opts.ValueColumnID)
	}
	return env.resolve(src, alias)
}

func (barcode) Render(_ *Env, _ *core.Column, value any) (any, error) {
	value = normalize(value)
	if value == nil {
		return nil, nil
	}
	return fmt.Sprint(value), nil
}

// button renders an action. A button with a formula selects its value.
type button struct {
	generic
}

func (button) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	return rejectWrite(col, value)
}

func (button) BuildSelect(env *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	opts := col.Options.Button
	if opts == nil || opts.Formula == "" {
		return sqlb.Null, nil
	}
	n, err := env.parseFormula(col, "button:"+col.ID, opts.Formula)
	if err != nil {
		return nil, err
	}
	return env.compileFormula(col, n, alias)
}

func (button) Render(_ *Env, col *core.Column, value any) (any, error) {
	out := map[string]any{"value": normalize(value)}
	if opts := col.Options.Button; opts != nil {
		out["label"] = opts.Label
		out["type"] = opts.Type
	}
	return out, nil
}
