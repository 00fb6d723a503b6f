package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/fieldhandler"
	"github.com/leapstack-labs/leapgrid/pkg/metacache"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// Request is a read of one model.
type Request struct {
	ModelID string `json:"model_id"`
	// ColumnIDs selects columns in this order; empty selects every
	// non-system column.
	ColumnIDs  []string        `json:"column_ids,omitempty"`
	Filters    []core.Filter   `json:"filters,omitempty"`
	Sorts      []core.Sort     `json:"sorts,omitempty"`
	Pagination core.Pagination `json:"pagination"`
	// Principal decides which role-restricted columns are returned.
	Principal *core.Principal `json:"-"`
}

// OutputColumn is one column of a compiled query's result. Alias is the
// name the column is selected as.
type OutputColumn struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Alias  string      `json:"alias"`
	UIType core.UIType `json:"uidt"`
}

// Query is a compiled statement.
type Query struct {
	SourceID string         `json:"source_id"`
	ModelID  string         `json:"model_id"`
	SQL      string         `json:"sql"`
	Args     []any          `json:"args"`
	Columns  []OutputColumn `json:"columns"`
}

// CompileQuery compiles req to a single SELECT on the model's source.
// Columns whose references cannot be resolved select NULL.
func (c *Compiler) CompileQuery(ctx context.Context, req Request) (*Query, error) {
	t, err := c.target(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	return c.compileFor(ctx, t, req)
}

// compileFor compiles req against an already loaded target, consulting the
// compiled-query cache when one is configured.
func (c *Compiler) compileFor(ctx context.Context, t *target, req Request) (*Query, error) {
	cols, err := t.selected(req)
	if err != nil {
		return nil, err
	}

	key := ""
	if c.cache != nil {
		key = cacheKey(t, cols, req)
		var cached Query
		ok, err := c.cache.Get(ctx, key, &cached)
		if err != nil {
			c.logger.Warn("compiled query cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		if ok {
			c.logger.Debug("compiled query cache hit", slog.String("model", req.ModelID))
			return &cached, nil
		}
	}

	q, err := c.compile(ctx, t, cols, req)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, q); err != nil {
			c.logger.Warn("compiled query cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	return q, nil
}

func (c *Compiler) compile(ctx context.Context, t *target, cols []*core.Column, req Request) (*Query, error) {
	env := t.env
	root := env.Table(t.model, fieldhandler.RootAlias)
	sel := sqlb.Select().From(root)

	q := &Query{SourceID: t.source.ID, ModelID: t.model.ID}
	for _, col := range cols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expr, err := env.Select(col, fieldhandler.RootAlias)
		if err != nil {
			return nil, fmt.Errorf("failed to compile column %s: %w", col.ID, err)
		}
		sel.AppendSelectAs(expr, col.ID)
		q.Columns = append(q.Columns, OutputColumn{ID: col.ID, Title: col.Title, Alias: col.ID, UIType: col.UIType})
	}

	where, err := t.filters(req.Filters, req.Principal)
	if err != nil {
		return nil, err
	}
	sel.Where(where)

	if err := t.sorts(sel, req.Sorts, req.Principal); err != nil {
		return nil, err
	}

	limit := req.Pagination.Limit
	if limit <= 0 {
		limit = c.defaultLimit
	}
	sel.Limit(limit).Offset(max(req.Pagination.Offset, 0))

	env.CTE.ApplyAll(sel)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.SQL, q.Args = sel.Query(env.Dialect)
	c.logger.Debug("compiled query",
		slog.String("model", t.model.ID),
		slog.Int("columns", len(q.Columns)),
		slog.Int("ctes", env.CTE.Len()))
	return q, nil
}

// selected returns the requested columns the principal may see.
func (t *target) selected(req Request) ([]*core.Column, error) {
	var cols []*core.Column
	if len(req.ColumnIDs) == 0 {
		for _, col := range t.columns() {
			if !col.System || col.PK {
				cols = append(cols, col)
			}
		}
	} else {
		seen := make(map[string]bool, len(req.ColumnIDs))
		for _, id := range req.ColumnIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			col, err := t.column(id)
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
	}

	visible := cols[:0]
	for _, col := range cols {
		if col.VisibleTo(req.Principal) {
			visible = append(visible, col)
		}
	}
	return visible, nil
}

// filters combines fs left to right: each filter joins the result so far
// with its logical operator, "and" by default.
func (t *target) filters(fs []core.Filter, p *core.Principal) (sqlb.Expr, error) {
	var acc sqlb.Expr
	for _, f := range fs {
		pred, err := t.filter(f, p)
		if err != nil {
			return nil, err
		}
		if pred == nil {
			continue
		}
		switch f.Logical {
		case core.LogicalOr:
			acc = sqlb.Or(acc, pred)
		case core.LogicalNot:
			acc = sqlb.And(acc, sqlb.Not(pred))
		case core.LogicalAnd, "":
			acc = sqlb.And(acc, pred)
		default:
			return nil, fmt.Errorf("unknown logical operator %q", f.Logical)
		}
	}
	return acc, nil
}

func (t *target) filter(f core.Filter, p *core.Principal) (sqlb.Expr, error) {
	if f.IsGroup {
		return t.filters(f.Children, p)
	}
	col, err := t.column(f.ColumnID)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	if !col.VisibleTo(p) {
		return nil, fmt.Errorf("invalid filter: column %s of model %s: %w", col.ID, t.model.ID, core.ErrNotFound)
	}
	return t.env.Filter(col, fieldhandler.RootAlias, f)
}

// sorts orders by ss and then by the primary key so that pages are stable.
func (t *target) sorts(sel *sqlb.Selector, ss []core.Sort, p *core.Principal) error {
	sorted := make(map[string]bool, len(ss))
	for _, s := range ss {
		col, err := t.column(s.ColumnID)
		if err != nil {
			return fmt.Errorf("invalid sort: %w", err)
		}
		if !col.VisibleTo(p) {
			return fmt.Errorf("invalid sort: column %s of model %s: %w", col.ID, t.model.ID, core.ErrNotFound)
		}
		if sorted[col.ID] {
			continue
		}
		sorted[col.ID] = true
		expr, err := t.env.Sort(col, fieldhandler.RootAlias)
		if err != nil {
			return fmt.Errorf("failed to compile sort on %s: %w", col.ID, err)
		}
		switch s.Direction {
		case core.SortAsc, "":
			sel.OrderBy(expr, false)
		case core.SortDesc:
			sel.OrderBy(expr, true)
		default:
			return fmt.Errorf("invalid sort direction %q", s.Direction)
		}
	}
	for _, col := range t.columns() {
		if col.PK && col.ColumnName != "" && !sorted[col.ID] {
			sel.OrderBy(sqlb.C(fieldhandler.RootAlias, col.ColumnName), false)
		}
	}
	return nil
}

// cacheKey fingerprints everything the SQL of a request depends on.
func cacheKey(t *target, cols []*core.Column, req Request) string {
	ids := make([]string, len(cols))
	for i, col := range cols {
		ids[i] = col.ID
	}
	b, err := json.Marshal(struct {
		Source     string          `json:"s"`
		Dialect    string          `json:"d"`
		Columns    []string        `json:"c"`
		Filters    []core.Filter   `json:"f"`
		Sorts      []core.Sort     `json:"o"`
		Pagination core.Pagination `json:"p"`
	}{t.source.ID, t.env.Dialect.Name, ids, req.Filters, req.Sorts, req.Pagination})
	if err != nil {
		// unencodable filter values are never cached under a shared key
		b = []byte(fmt.Sprintf("%p", &req))
	}
	sum := sha256.Sum256(b)
	return metacache.Key(metacache.ScopeSingleQuery, t.model.ID+":"+hex.EncodeToString(sum[:]))
}
