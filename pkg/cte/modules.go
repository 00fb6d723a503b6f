package cte

import (
	"fmt"

	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// Module names.
const (
	ModuleHierarchy     = "hierarchy"
	ModuleLinkCount     = "link_count"
	ModuleJunctionCount = "junction_count"
)

// Output columns of the count modules.
const (
	CountKeyColumn   = "owner_key"
	CountValueColumn = "link_count"
)

// Output columns of the hierarchy module.
const (
	NodeColumn   = "node_id"
	ParentColumn = "parent_id"
	DepthColumn  = "depth"
)

func init() {
	RegisterModule(ModuleHierarchy, hierarchyModule{})
	RegisterModule(ModuleLinkCount, countModule{prefix: "lc"})
	RegisterModule(ModuleJunctionCount, countModule{prefix: "jc"})
}

// CountParams groups the rows of a table by the column that references the
// owner and counts them.
type CountParams struct {
	Schema    string
	Table     string
	KeyColumn string
}

type countModule struct {
	prefix string
}

func (countModule) params(params any) (CountParams, error) {
	p, ok := params.(CountParams)
	if !ok {
		return p, fmt.Errorf("expected CountParams, got %T", params)
	}
	if p.Table == "" || p.KeyColumn == "" {
		return p, fmt.Errorf("table and key column are required")
	}
	return p, nil
}

func (m countModule) Key(params any) (string, error) {
	p, err := m.params(params)
	if err != nil {
		return "", err
	}
	return p.Schema + "." + p.Table + "." + p.KeyColumn, nil
}

func (m countModule) Alias(params any) string {
	p, _ := params.(CountParams)
	return aliasName(m.prefix, p.Table, p.KeyColumn)
}

func (countModule) Recursive() bool { return false }

func (m countModule) Build(alias string, params any) (*sqlb.CTE, error) {
	p, err := m.params(params)
	if err != nil {
		return nil, err
	}
	t := sqlb.Table(p.Table).Schema(p.Schema).As("t")
	key := t.C(p.KeyColumn)
	q := sqlb.Select(key, sqlb.Func("COUNT", sqlb.Star)).
		From(t).
		Where(sqlb.NotNull(key)).
		GroupBy(key)
	return &sqlb.CTE{
		Name:    alias,
		Columns: []string{CountKeyColumn, CountValueColumn},
		Query:   q,
	}, nil
}

// Direction selects which way a hierarchy is walked.
type Direction string

// Directions.
const (
	// Descendants follows rows whose parent column points at the current row.
	Descendants Direction = "down"
	// Ancestors follows the current row's parent column upwards.
	Ancestors Direction = "up"
)

// HierarchyParams describe a self-referencing table: every row has a key and
// a parent column holding another row's key.
type HierarchyParams struct {
	Schema       string
	Table        string
	KeyColumn    string
	ParentColumn string
	Direction    Direction
	// Roots are the keys of the depth-0 rows.
	Roots []any
	// MaxDepth defaults to, and is capped at, the package MaxDepth.
	MaxDepth int
}

// Depth returns the effective depth cap.
func (p HierarchyParams) Depth() int {
	if p.MaxDepth <= 0 || p.MaxDepth > MaxDepth {
		return MaxDepth
	}
	return p.MaxDepth
}

func (p HierarchyParams) validate() error {
	if p.Table == "" || p.KeyColumn == "" || p.ParentColumn == "" {
		return fmt.Errorf("table, key column and parent column are required")
	}
	if p.Direction != Descendants && p.Direction != Ancestors {
		return fmt.Errorf("unknown direction %q", p.Direction)
	}
	return nil
}

type hierarchyModule struct{}

func (hierarchyModule) params(params any) (HierarchyParams, error) {
	p, ok := params.(HierarchyParams)
	if !ok {
		return p, fmt.Errorf("expected HierarchyParams, got %T", params)
	}
	return p, p.validate()
}

func (m hierarchyModule) Key(params any) (string, error) {
	p, err := m.params(params)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s.%s.%s.%s.%d.%v", p.Schema, p.Table, p.KeyColumn, p.ParentColumn, p.Direction, p.Depth(), p.Roots), nil
}

func (hierarchyModule) Alias(params any) string {
	p, _ := params.(HierarchyParams)
	return aliasName("h", p.Table, p.ParentColumn, string(p.Direction))
}

func (hierarchyModule) Recursive() bool { return true }

// Build renders
//
//	base:      SELECT key, parent, 0 FROM t WHERE key IN (roots)
//	recursive: SELECT key, parent, depth + 1 FROM t JOIN alias ON <step> WHERE depth < max
func (m hierarchyModule) Build(alias string, params any) (*sqlb.CTE, error) {
	p, err := m.params(params)
	if err != nil {
		return nil, err
	}

	base := sqlb.Table(p.Table).Schema(p.Schema).As("t")
	anchor := sqlb.Select(base.C(p.KeyColumn), base.C(p.ParentColumn), sqlb.Int(0)).
		From(base).
		Where(sqlb.In(base.C(p.KeyColumn), p.Roots...))

	t := sqlb.Table(p.Table).Schema(p.Schema).As("t")
	self := sqlb.Table(alias).As("h")
	var step sqlb.Expr
	if p.Direction == Descendants {
		step = sqlb.EQ(t.C(p.ParentColumn), self.C(NodeColumn))
	} else {
		step = sqlb.EQ(t.C(p.KeyColumn), self.C(ParentColumn))
	}
	recursive := sqlb.Select(t.C(p.KeyColumn), t.C(p.ParentColumn), sqlb.Binary(self.C(DepthColumn), "+", sqlb.Int(1))).
		From(t).
		Join(self, step).
		Where(sqlb.LT(self.C(DepthColumn), sqlb.Int(p.Depth())))

	return &sqlb.CTE{
		Name:      alias,
		Columns:   []string{NodeColumn, ParentColumn, DepthColumn},
		Query:     sqlb.UnionAll(anchor, recursive),
		Recursive: true,
	}, nil
}
