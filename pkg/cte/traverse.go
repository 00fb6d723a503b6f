package cte

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/dialect"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// Querier runs the level queries of an iterative traversal. adapter.Client
// satisfies it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Dialect() *dialect.Dialect
}

// Node is one row reached by a traversal.
type Node struct {
	Key    any `json:"key"`
	Parent any `json:"parent"`
	Depth  int `json:"depth"`
}

// TraversalResult holds the reached rows in breadth-first order. Truncated
// is set when rows beyond the depth cap exist.
type TraversalResult struct {
	Nodes     []Node `json:"nodes"`
	Truncated bool   `json:"truncated"`
	MaxDepth  int    `json:"max_depth"`
}

// Traverse walks a hierarchy one level per query. It is the fallback for
// sources without recursive CTEs and returns the same rows as the hierarchy
// module, except that a row reached twice (cyclic data) is kept only at its
// first depth.
func Traverse(ctx context.Context, q Querier, p HierarchyParams) (*TraversalResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	res := &TraversalResult{MaxDepth: p.Depth()}
	err := walk(ctx, q, p, res)

	var depthErr *core.RecursionDepthExceededError
	if errors.As(err, &depthErr) {
		res.Truncated = true
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func walk(ctx context.Context, q Querier, p HierarchyParams, res *TraversalResult) error {
	visited := make(map[any]struct{})

	level, err := fetchLevel(ctx, q, p, p.KeyColumn, p.Roots)
	if err != nil {
		return err
	}

	for depth := 0; ; depth++ {
		var next []any
		for _, n := range level {
			if _, seen := visited[n.Key]; seen {
				continue
			}
			visited[n.Key] = struct{}{}
			n.Depth = depth
			res.Nodes = append(res.Nodes, n)

			if p.Direction == Descendants {
				next = append(next, n.Key)
			} else if n.Parent != nil {
				next = append(next, n.Parent)
			}
		}
		if len(next) == 0 {
			return nil
		}

		matchColumn := p.ParentColumn
		if p.Direction == Ancestors {
			matchColumn = p.KeyColumn
		}
		if level, err = fetchLevel(ctx, q, p, matchColumn, next); err != nil {
			return err
		}

		if depth == res.MaxDepth {
			pending := 0
			for _, n := range level {
				if _, seen := visited[n.Key]; !seen {
					pending++
				}
			}
			if pending > 0 {
				return &core.RecursionDepthExceededError{MaxDepth: res.MaxDepth, Pending: pending}
			}
			return nil
		}
	}
}

// NextLevel returns the rows one step beyond nodes in p's direction. Callers
// that ran the hierarchy module use it on the deepest level to find out
// whether the depth cap cut the walk short.
func NextLevel(ctx context.Context, q Querier, p HierarchyParams, nodes []Node) ([]Node, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	var keys []any
	matchColumn := p.ParentColumn
	for _, n := range nodes {
		if p.Direction == Descendants {
			keys = append(keys, n.Key)
		} else if n.Parent != nil {
			keys = append(keys, n.Parent)
		}
	}
	if p.Direction == Ancestors {
		matchColumn = p.KeyColumn
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return fetchLevel(ctx, q, p, matchColumn, keys)
}

func fetchLevel(ctx context.Context, q Querier, p HierarchyParams, matchColumn string, keys []any) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := sqlb.Table(p.Table).Schema(p.Schema).As("t")
	sel := sqlb.Select(t.C(p.KeyColumn), t.C(p.ParentColumn)).
		From(t).
		Where(sqlb.In(t.C(matchColumn), keys...)).
		OrderBy(t.C(p.KeyColumn), false)
	query, args := sel.Query(q.Dialect())

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hierarchy level of %s: %w", p.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []Node
	for rows.Next() {
		var key, parent any
		if err := rows.Scan(&key, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan hierarchy row: %w", err)
		}
		nodes = append(nodes, Node{Key: NormalizeKey(key), Parent: NormalizeKey(parent)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hierarchy rows: %w", err)
	}
	return nodes, nil
}

// NormalizeKey makes a scanned key usable as a map key and comparable across
// drivers: byte slices become strings and integers int64.
func NormalizeKey(v any) any {
	switch k := v.(type) {
	case []byte:
		return string(k)
	case int:
		return int64(k)
	case int32:
		return int64(k)
	}
	return v
}
