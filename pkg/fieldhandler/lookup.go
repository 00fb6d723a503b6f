package fieldhandler

import (
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/relation"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// target resolves the link and the related model's column a lookup or
// rollup reads.
func (e *Env) target(col *core.Column, linkID, targetID string) (*relation.Join, *core.Column, error) {
	j, err := e.join(col, linkID)
	if err != nil {
		return nil, nil, err
	}
	t, ok := e.Meta.Column(targetID)
	if !ok {
		return nil, nil, core.Unresolved(col.ID, "column %s not found", targetID)
	}
	if t.ModelID != j.Ref.Model.ID {
		return nil, nil, core.Unresolved(col.ID, "column %s is not on related model %s", targetID, j.Ref.Model.ID)
	}
	return j, t, nil
}

// lookup reads a column of the linked rows. The looked-up column may be
// computed itself; its expression is compiled against the related table.
type lookup struct {
	generic
}

func (lookup) options(col *core.Column) (*core.LookupOptions, error) {
	if col.Options.Lookup == nil {
		return nil, core.Unresolved(col.ID, "lookup options missing")
	}
	return col.Options.Lookup, nil
}

func (lookup) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	return rejectWrite(col, value)
}

func (h lookup) BuildSelect(env *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	opts, err := h.options(col)
	if err != nil {
		return nil, err
	}
	j, t, err := env.target(col, opts.RelationColumnID, opts.LookupColumnID)
	if err != nil {
		return nil, err
	}
	sel, ref := env.related(j, alias)
	inner, err := env.resolve(t, ref.Alias())
	if err != nil {
		return nil, err
	}
	if j.SingleValued() {
		return sqlb.Sub(sel.AppendSelect(inner).Limit(1)), nil
	}
	return sqlb.Sub(sel.AppendSelect(sqlb.ListAgg(inner))), nil
}

// Render returns the target column's rendering for single-valued lookups
// and a list of them otherwise.
func (h lookup) Render(env *Env, col *core.Column, value any) (any, error) {
	opts, err := h.options(col)
	if err != nil {
		return normalize(value), nil
	}
	j, t, err := env.target(col, opts.RelationColumnID, opts.LookupColumnID)
	if err != nil {
		return normalize(value), nil
	}
	if j.SingleValued() {
		if value == nil {
			return nil, nil
		}
		return env.Render(t, value)
	}
	items := env.decodeList(value)
	out := make([]any, 0, len(items))
	for _, item := range items {
		r, err := env.Render(t, item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// BuildFilter matches rows where any linked row's target satisfies f.
// Blank checks apply to the aggregated value.
func (h lookup) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	opts, err := h.options(col)
	if err != nil {
		return nil, err
	}
	j, t, err := env.target(col, opts.RelationColumnID, opts.LookupColumnID)
	if err != nil {
		return nil, err
	}
	switch f.Op {
	case core.OpBlank, core.OpNotBlank:
		return filterColumn(env, col, alias, f, comparison{textual: isTextual(t.UIType)})
	}
	if env.visiting[col.ID] {
		return nil, core.Unresolved(col.ID, "circular reference")
	}
	env.visiting[col.ID] = true
	defer delete(env.visiting, col.ID)

	sel, ref := env.related(j, alias)
	pred, err := env.Handler(t).BuildFilter(env, t, ref.Alias(), f)
	if err != nil {
		return nil, err
	}
	return sqlb.Exists(sel.AppendSelect(sqlb.Int(1)).Where(pred)), nil
}

// rollup aggregates a column of the linked rows.
type rollup struct {
	generic
}

func (rollup) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	return rejectWrite(col, value)
}

func (rollup) BuildSelect(env *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	opts := col.Options.Rollup
	if opts == nil {
		return nil, core.Unresolved(col.ID, "rollup options missing")
	}
	j, t, err := env.target(col, opts.RelationColumnID, opts.RollupColumnID)
	if err != nil {
		return nil, err
	}
	sel, ref := env.related(j, alias)
	inner, err := env.resolve(t, ref.Alias())
	if err != nil {
		return nil, err
	}

	var agg sqlb.Expr
	counted := false
	switch opts.Function {
	case core.RollupCount:
		agg, counted = sqlb.Func("COUNT", inner), true
	case core.RollupCountDistinct:
		agg, counted = sqlb.Distinct("COUNT", inner), true
	case core.RollupSum:
		agg = sqlb.Func("SUM", inner)
	case core.RollupSumDistinct:
		agg = sqlb.Distinct("SUM", inner)
	case core.RollupAvg:
		agg = sqlb.Func("AVG", inner)
	case core.RollupAvgDistinct:
		agg = sqlb.Distinct("AVG", inner)
	case core.RollupMin:
		agg = sqlb.Func("MIN", inner)
	case core.RollupMax:
		agg = sqlb.Func("MAX", inner)
	default:
		return nil, core.Unresolved(col.ID, "unknown rollup function %q", opts.Function)
	}
	sub := sqlb.Sub(sel.AppendSelect(agg))
	if counted {
		return sqlb.Coalesce(sub, sqlb.Int(0)), nil
	}
	return sub, nil
}

func (rollup) Render(_ *Env, _ *core.Column, value any) (any, error) {
	return renderNumber(value), nil
}

func (rollup) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	return filterColumn(env, col, alias, f, comparison{bind: func(v any) (any, error) {
		if n, ok := toFloat64(v); ok {
			return n, nil
		}
		return nil, core.ErrInvalidValue(col, v, "must be a number")
	}})
}
