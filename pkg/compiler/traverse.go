package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/cte"
	"github.com/leapstack-labs/leapgrid/pkg/relation"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// TraversalRequest walks a self-referencing link column of a model from the
// rows whose primary keys are Roots.
type TraversalRequest struct {
	ModelID      string        `json:"model_id"`
	LinkColumnID string        `json:"link_column_id"`
	Roots        []any         `json:"roots"`
	Direction    cte.Direction `json:"direction"`
	// MaxDepth defaults to, and is capped at, cte.MaxDepth.
	MaxDepth int `json:"max_depth,omitempty"`
}

// hierarchy maps a self-referencing link onto hierarchy parameters. The key
// column is the referenced one and the parent column holds the reference.
func (t *target) hierarchy(req TraversalRequest) (cte.HierarchyParams, error) {
	col, err := t.column(req.LinkColumnID)
	if err != nil {
		return cte.HierarchyParams{}, err
	}
	if !col.UIType.IsLink() {
		return cte.HierarchyParams{}, fmt.Errorf("column %s is not a link", col.ID)
	}
	j, err := relation.Resolve(col, t.snap)
	if err != nil {
		return cte.HierarchyParams{}, fmt.Errorf("failed to resolve link %s: %w", col.ID, err)
	}
	if j.Owner.Model.ID != j.Ref.Model.ID {
		return cte.HierarchyParams{}, fmt.Errorf("link %s does not reference its own model", col.ID)
	}

	p := cte.HierarchyParams{
		Schema:    t.env.TableSchema,
		Table:     t.model.TableName,
		Direction: req.Direction,
		Roots:     req.Roots,
		MaxDepth:  req.MaxDepth,
	}
	switch j.Kind {
	case core.RelationBelongsTo:
		p.KeyColumn, p.ParentColumn = j.Ref.Column.ColumnName, j.Owner.Column.ColumnName
	case core.RelationHasMany:
		p.KeyColumn, p.ParentColumn = j.Owner.Column.ColumnName, j.Ref.Column.ColumnName
	default:
		return cte.HierarchyParams{}, fmt.Errorf("link %s is %s; only bt and hm links form a hierarchy", col.ID, j.Kind)
	}
	if p.Direction == "" {
		p.Direction = cte.Descendants
	}
	if len(p.Roots) == 0 {
		return cte.HierarchyParams{}, errors.New("traversal needs at least one root")
	}
	return p, nil
}

// CompileTraversal compiles req to one recursive query returning node_id,
// parent_id and depth, each row at the smallest depth it is reached at. It
// returns cte.ErrRecursiveCTEUnsupported for sources without recursive CTEs.
func (c *Compiler) CompileTraversal(ctx context.Context, req TraversalRequest) (*Query, error) {
	t, err := c.target(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	p, err := t.hierarchy(req)
	if err != nil {
		return nil, err
	}
	return t.compileTraversal(p)
}

func (t *target) compileTraversal(p cte.HierarchyParams) (*Query, error) {
	block, err := t.env.CTE.Register(cte.ModuleHierarchy, p)
	if err != nil {
		return nil, err
	}

	h := sqlb.Table(block.Alias).As("h")
	depth := sqlb.Func("MIN", h.C(cte.DepthColumn))
	sel := sqlb.Select(h.C(cte.NodeColumn), h.C(cte.ParentColumn)).
		AppendSelectAs(depth, cte.DepthColumn).
		From(h).
		GroupBy(h.C(cte.NodeColumn), h.C(cte.ParentColumn)).
		OrderBy(depth, false).
		OrderBy(h.C(cte.NodeColumn), false)
	t.env.CTE.ApplyAll(sel)

	q := &Query{SourceID: t.source.ID, ModelID: t.model.ID}
	q.SQL, q.Args = sel.Query(t.env.Dialect)
	q.Columns = []OutputColumn{
		{ID: cte.NodeColumn, Title: cte.NodeColumn, Alias: cte.NodeColumn},
		{ID: cte.ParentColumn, Title: cte.ParentColumn, Alias: cte.ParentColumn},
		{ID: cte.DepthColumn, Title: cte.DepthColumn, Alias: cte.DepthColumn},
	}
	return q, nil
}

// Traverse walks req on the model's source. Sources with recursive CTEs get
// a single query; the others are walked one level per query.
func (c *Compiler) Traverse(ctx context.Context, req TraversalRequest) (*cte.TraversalResult, error) {
	if c.pool == nil {
		return nil, ErrNoPool
	}
	t, err := c.target(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	p, err := t.hierarchy(req)
	if err != nil {
		return nil, err
	}

	client, release, err := c.pool.Acquire(ctx, t.source)
	if err != nil {
		return nil, err
	}
	defer release()

	// The connected server may support less than its configuration says.
	t.env.CTE = cte.NewGenerator(t.env.CTE.Capabilities().Intersect(client.Capabilities()))

	q, err := t.compileTraversal(p)
	if errors.Is(err, cte.ErrRecursiveCTEUnsupported) {
		c.logger.Debug("walking hierarchy level by level",
			slog.String("model", t.model.ID),
			slog.String("source", t.source.ID))
		return cte.Traverse(ctx, client, p)
	}
	if err != nil {
		return nil, err
	}
	return recursiveTraverse(ctx, client, p, q)
}

func recursiveTraverse(ctx context.Context, client cte.Querier, p cte.HierarchyParams, q *Query) (*cte.TraversalResult, error) {
	rows, err := client.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hierarchy of %s: %w", p.Table, err)
	}
	defer func() { _ = rows.Close() }()

	res := &cte.TraversalResult{MaxDepth: p.Depth()}
	seen := make(map[any]bool)
	var deepest []cte.Node
	for rows.Next() {
		var key, parent any
		var depth int
		if err := rows.Scan(&key, &parent, &depth); err != nil {
			return nil, fmt.Errorf("failed to scan hierarchy row: %w", err)
		}
		n := cte.Node{Key: cte.NormalizeKey(key), Parent: cte.NormalizeKey(parent), Depth: depth}
		if seen[n.Key] {
			continue
		}
		seen[n.Key] = true
		res.Nodes = append(res.Nodes, n)
		if depth == res.MaxDepth {
			deepest = append(deepest, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hierarchy rows: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	if len(deepest) == 0 {
		return res, nil
	}
	beyond, err := cte.NextLevel(ctx, client, p, deepest)
	if err != nil {
		return nil, err
	}
	for _, n := range beyond {
		if !seen[n.Key] {
			res.Truncated = true
			break
		}
	}
	return res, nil
}
