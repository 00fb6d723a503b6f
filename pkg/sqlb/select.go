package sqlb

import "github.com/leapstack-labs/leapgrid/pkg/dialect"

// TableView is anything that can appear in a FROM or JOIN clause.
type TableView interface {
	Expr
	// Alias is the name other fragments use to qualify columns of this view.
	Alias() string
}

// TableRef is a reference to a named table or CTE.
type TableRef struct {
	schema string
	name   string
	alias  string
}

// Table references the table (or CTE) name.
func Table(name string) *TableRef {
	return &TableRef{name: name}
}

// Schema qualifies the table with a schema.
func (t *TableRef) Schema(schema string) *TableRef {
	t.schema = schema
	return t
}

// As sets the table alias.
func (t *TableRef) As(alias string) *TableRef {
	t.alias = alias
	return t
}

// Name returns the unqualified table name.
func (t *TableRef) Name() string { return t.name }

// Alias returns the alias, or the table name when none is set.
func (t *TableRef) Alias() string {
	if t.alias != "" {
		return t.alias
	}
	return t.name
}

// C references a column of this table through its alias.
func (t *TableRef) C(column string) Expr {
	return C(t.Alias(), column)
}

// AppendSQL implements Expr.
func (t *TableRef) AppendSQL(b *Builder) {
	if t.schema != "" {
		b.Ident(t.schema).WriteString(".")
	}
	b.Ident(t.name)
	if t.alias != "" && t.alias != t.name {
		b.WriteString(" ").Ident(t.alias)
	}
}

// SubTable is a derived table.
type SubTable struct {
	query Expr
	alias string
}

// From wraps a query as a derived table named alias.
func From(query Expr, alias string) *SubTable {
	return &SubTable{query: query, alias: alias}
}

// Alias implements TableView.
func (s *SubTable) Alias() string { return s.alias }

// AppendSQL implements Expr.
func (s *SubTable) AppendSQL(b *Builder) {
	b.WriteString("(")
	b.Append(s.query)
	b.WriteString(") ").Ident(s.alias)
}

// CTE is a named common table expression.
type CTE struct {
	Name      string
	Columns   []string
	Query     Expr
	Recursive bool
}

func (c *CTE) appendSQL(b *Builder) {
	b.Ident(c.Name)
	if len(c.Columns) > 0 {
		b.WriteString(" (")
		for i, col := range c.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(col)
		}
		b.WriteString(")")
	}
	b.WriteString(" AS (")
	b.Append(c.Query)
	b.WriteString(")")
}

// UnionAll combines queries with UNION ALL.
func UnionAll(queries ...Expr) Expr {
	return ExprFunc(func(b *Builder) {
		b.Join(queries, " UNION ALL ")
	})
}

type joinKind string

const (
	innerJoin joinKind = "JOIN"
	leftJoin  joinKind = "LEFT JOIN"
)

type join struct {
	kind  joinKind
	table TableView
	on    Expr
}

type selection struct {
	expr  Expr
	alias string
}

type orderItem struct {
	expr Expr
	desc bool
}

// Selector builds a SELECT statement.
type Selector struct {
	with      []*CTE
	distinct  bool
	selection []selection
	from      TableView
	joins     []join
	where     Expr
	group     []Expr
	having    Expr
	order     []orderItem
	limit     int
	offset    int
}

// Select starts a SELECT of columns.
func Select(columns ...Expr) *Selector {
	s := &Selector{}
	for _, c := range columns {
		s.selection = append(s.selection, selection{expr: c})
	}
	return s
}

// Distinct makes the selection DISTINCT.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// AppendSelect adds a column to the selection.
func (s *Selector) AppendSelect(e Expr) *Selector {
	s.selection = append(s.selection, selection{expr: e})
	return s
}

// AppendSelectAs adds an aliased column to the selection.
func (s *Selector) AppendSelectAs(e Expr, alias string) *Selector {
	s.selection = append(s.selection, selection{expr: e, alias: alias})
	return s
}

// SelectionLen is the number of selected columns.
func (s *Selector) SelectionLen() int {
	return len(s.selection)
}

// From sets the FROM clause.
func (s *Selector) From(t TableView) *Selector {
	s.from = t
	return s
}

// FromAlias returns the alias of the FROM table.
func (s *Selector) FromAlias() string {
	if s.from == nil {
		return ""
	}
	return s.from.Alias()
}

// Join adds an INNER JOIN.
func (s *Selector) Join(t TableView, on Expr) *Selector {
	s.joins = append(s.joins, join{kind: innerJoin, table: t, on: on})
	return s
}

// LeftJoin adds a LEFT JOIN.
func (s *Selector) LeftJoin(t TableView, on Expr) *Selector {
	s.joins = append(s.joins, join{kind: leftJoin, table: t, on: on})
	return s
}

// Where ANDs p into the WHERE clause. Nil predicates are ignored.
func (s *Selector) Where(p Expr) *Selector {
	s.where = And(s.where, p)
	return s
}

// GroupBy adds grouping expressions.
func (s *Selector) GroupBy(exprs ...Expr) *Selector {
	s.group = append(s.group, exprs...)
	return s
}

// Having ANDs p into the HAVING clause.
func (s *Selector) Having(p Expr) *Selector {
	s.having = And(s.having, p)
	return s
}

// OrderBy adds a sort key.
func (s *Selector) OrderBy(e Expr, desc bool) *Selector {
	s.order = append(s.order, orderItem{expr: e, desc: desc})
	return s
}

// Limit caps the number of rows. Zero means no limit.
func (s *Selector) Limit(n int) *Selector {
	s.limit = n
	return s
}

// Offset skips rows. Zero means no offset.
func (s *Selector) Offset(n int) *Selector {
	s.offset = n
	return s
}

// With adds a CTE. A CTE whose name is already present is ignored.
func (s *Selector) With(cte *CTE) *Selector {
	if !s.HasCTE(cte.Name) {
		s.with = append(s.with, cte)
	}
	return s
}

// HasCTE reports whether a CTE called name is attached.
func (s *Selector) HasCTE(name string) bool {
	for _, c := range s.with {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CTEs returns the attached CTEs in declaration order.
func (s *Selector) CTEs() []*CTE {
	return s.with
}

// AppendSQL implements Expr.
func (s *Selector) AppendSQL(b *Builder) {
	if len(s.with) > 0 {
		keyword := "WITH"
		for _, c := range s.with {
			if c.Recursive {
				keyword = b.Dialect().RecursiveKeyword()
				break
			}
		}
		b.WriteString(keyword).WriteString(" ")
		for i, c := range s.with {
			if i > 0 {
				b.WriteString(", ")
			}
			c.appendSQL(b)
		}
		b.WriteString(" ")
	}

	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.selection) == 0 {
		b.WriteString("*")
	}
	for i, sel := range s.selection {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Append(sel.expr)
		if sel.alias != "" {
			b.WriteString(" AS ").Ident(sel.alias)
		}
	}

	if s.from != nil {
		b.WriteString(" FROM ")
		s.from.AppendSQL(b)
	}
	for _, j := range s.joins {
		b.WriteString(" ").WriteString(string(j.kind)).WriteString(" ")
		j.table.AppendSQL(b)
		b.WriteString(" ON ")
		b.Append(j.on)
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		b.Append(s.where)
	}
	if len(s.group) > 0 {
		b.WriteString(" GROUP BY ")
		b.Join(s.group, ", ")
	}
	if s.having != nil {
		b.WriteString(" HAVING ")
		b.Append(s.having)
	}
	for i, o := range s.order {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.Append(o.expr)
		if o.desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
	if s.limit > 0 {
		b.WriteString(" LIMIT ").Int(s.limit)
	}
	// SQLite and MySQL reject OFFSET without LIMIT; callers paginate with both.
	if s.offset > 0 {
		b.WriteString(" OFFSET ").Int(s.offset)
	}
}

// Query renders the statement for d.
func (s *Selector) Query(d *dialect.Dialect) (string, []any) {
	return Render(d, s)
}
