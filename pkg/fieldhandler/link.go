package fieldhandler

import (
	"encoding/json"
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/cte"
	"github.com/leapstack-labs/leapgrid/pkg/dialects/sqlite"
	"github.com/leapstack-labs/leapgrid/pkg/relation"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// join resolves the link column linkID, which must belong to the model of
// col. Links spanning sources resolve to an error since one statement
// cannot read both.
func (e *Env) join(col *core.Column, linkID string) (*relation.Join, error) {
	linkCol, ok := e.Meta.Column(linkID)
	if !ok {
		return nil, core.Unresolved(col.ID, "link column %s not found", linkID)
	}
	if !linkCol.UIType.IsLink() || linkCol.Options.Link == nil {
		return nil, core.Unresolved(col.ID, "column %s is not a link", linkID)
	}
	if linkCol.ModelID != col.ModelID {
		return nil, core.Unresolved(col.ID, "link column %s belongs to model %s", linkID, linkCol.ModelID)
	}
	j, err := relation.Resolve(linkCol, e.Meta)
	if err != nil {
		return nil, err
	}
	if j.CrossSource() {
		return nil, core.Unresolved(col.ID, "link %s spans sources", linkID)
	}
	for _, c := range joinKeys(j) {
		if c.ColumnName == "" {
			return nil, core.Unresolved(col.ID, "key column %s has no physical name", c.ID)
		}
	}
	return j, nil
}

func joinKeys(j *relation.Join) []*core.Column {
	keys := []*core.Column{j.Owner.Column, j.Ref.Column}
	if j.Junction != nil {
		keys = append(keys, j.Junction.OwnerColumn, j.Junction.RefColumn)
	}
	return keys
}

// related starts a correlated subquery over the ref rows of the owner row
// aliased ownerAlias. The returned table is the ref model's.
func (e *Env) related(j *relation.Join, ownerAlias string) (*sqlb.Selector, *sqlb.TableRef) {
	ref := e.Table(j.Ref.Model, e.NextAlias())
	owner := sqlb.C(ownerAlias, j.Owner.Column.ColumnName)
	sel := sqlb.Select().From(ref)
	if j.Junction == nil {
		return sel.Where(sqlb.EQ(ref.C(j.Ref.Column.ColumnName), owner)), ref
	}
	jn := e.Table(j.Junction.Model, e.NextAlias())
	sel.Join(jn, sqlb.EQ(jn.C(j.Junction.RefColumn.ColumnName), ref.C(j.Ref.Column.ColumnName)))
	return sel.Where(sqlb.EQ(jn.C(j.Junction.OwnerColumn.ColumnName), owner)), ref
}

// displayColumn is the display value column of m, then its primary key,
// then fallback.
func (e *Env) displayColumn(m *core.Model, fallback *core.Column) *core.Column {
	var pk *core.Column
	for _, c := range e.Meta.ModelColumns(m.ID) {
		if c.PV {
			return c
		}
		if c.PK && pk == nil {
			pk = c
		}
	}
	if pk != nil {
		return pk
	}
	return fallback
}

// decodeList splits a value aggregated with sqlb.ListAgg.
func (e *Env) decodeList(value any) []any {
	value = normalize(value)
	s, ok := value.(string)
	if !ok {
		if value == nil {
			return []any{}
		}
		return []any{value}
	}
	if e.Dialect.Name == "sqlite" {
		if s == "" {
			return []any{}
		}
		parts := strings.Split(s, sqlite.ListSeparator)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	}
	var out []any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []any{s}
	}
	if out == nil {
		out = []any{}
	}
	return out
}

// link reads the display values of the linked rows: a single value for
// belongs-to, a list otherwise.
type link struct {
	generic
}

func (link) BuildSelect(env *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	j, err := env.join(col, col.ID)
	if err != nil {
		return nil, err
	}
	sel, ref := env.related(j, alias)
	pv := env.displayColumn(j.Ref.Model, j.Ref.Column)
	inner, err := env.resolve(pv, ref.Alias())
	if err != nil {
		return nil, err
	}
	if j.SingleValued() {
		return sqlb.Sub(sel.AppendSelect(inner).Limit(1)), nil
	}
	return sqlb.Sub(sel.AppendSelect(sqlb.ListAgg(inner))), nil
}

func (link) Render(env *Env, col *core.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if opts := col.Options.Link; opts != nil && relation.Kind(col, opts) == core.RelationBelongsTo {
		return normalize(value), nil
	}
	return env.decodeList(value), nil
}

// BuildFilter matches rows where any linked row satisfies f. Negative
// comparisons match rows where none does.
func (link) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	switch f.Op {
	case core.OpBlank, core.OpNotBlank:
		return filterColumn(env, col, alias, f, comparison{textual: true})
	}
	j, err := env.join(col, col.ID)
	if err != nil {
		return nil, err
	}
	sel, ref := env.related(j, alias)
	pv := env.displayColumn(j.Ref.Model, j.Ref.Column)

	positive := f
	switch f.Op {
	case core.OpNeq:
		positive.Op = core.OpEq
	case core.OpNotLike:
		positive.Op = core.OpLike
	}
	pred, err := env.Handler(pv).BuildFilter(env, pv, ref.Alias(), positive)
	if err != nil {
		return nil, err
	}
	exists := sqlb.Exists(sel.AppendSelect(sqlb.Int(1)).Where(pred))
	if positive.Op != f.Op {
		return sqlb.Not(exists), nil
	}
	return exists, nil
}

// links counts the linked rows.
type links struct {
	generic
}

func (links) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	return rejectWrite(col, value)
}

func (links) BuildSelect(env *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	j, err := env.join(col, col.ID)
	if err != nil {
		return nil, err
	}
	owner := sqlb.C(alias, j.Owner.Column.ColumnName)
	if j.SingleValued() {
		return sqlb.Case([]sqlb.When{{Cond: sqlb.IsNull(owner), Then: sqlb.Int(0)}}, sqlb.Int(1)), nil
	}

	module, params := cte.ModuleLinkCount, cte.CountParams{
		Schema:    env.TableSchema,
		Table:     j.Ref.Model.TableName,
		KeyColumn: j.Ref.Column.ColumnName,
	}
	if j.Junction != nil {
		module, params = cte.ModuleJunctionCount, cte.CountParams{
			Schema:    env.TableSchema,
			Table:     j.Junction.Model.TableName,
			KeyColumn: j.Junction.OwnerColumn.ColumnName,
		}
	}
	block, err := env.CTE.Register(module, params)
	if err != nil {
		return nil, err
	}
	counts := sqlb.Table(block.Alias).As(env.NextAlias())
	count := sqlb.Select(counts.C(cte.CountValueColumn)).
		From(counts).
		Where(sqlb.EQ(counts.C(cte.CountKeyColumn), owner))
	return sqlb.Coalesce(sqlb.Sub(count), sqlb.Int(0)), nil
}

func (links) Render(_ *Env, _ *core.Column, value any) (any, error) {
	if value == nil {
		return int64(0), nil
	}
	return renderNumber(value), nil
}

func (links) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	return filterColumn(env, col, alias, f, comparison{bind: func(v any) (any, error) {
		if n, ok := toInt64(v); ok {
			return n, nil
		}
		return nil, core.ErrInvalidValue(col, v, "must be an integer")
	}})
}
