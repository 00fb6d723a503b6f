package core

// FilterOp is a comparison applied by a filter.
type FilterOp string

// Filter comparison operators.
const (
	OpEq         FilterOp = "eq"
	OpNeq        FilterOp = "neq"
	OpLike       FilterOp = "like"
	OpNotLike    FilterOp = "nlike"
	OpGt         FilterOp = "gt"
	OpGte        FilterOp = "gte"
	OpLt         FilterOp = "lt"
	OpLte        FilterOp = "lte"
	OpBlank      FilterOp = "blank"
	OpNotBlank   FilterOp = "notblank"
	OpIn         FilterOp = "in"
	OpChecked    FilterOp = "checked"
	OpNotChecked FilterOp = "notchecked"
)

// LogicalOp joins a filter to its siblings.
type LogicalOp string

// Logical operators.
const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
	LogicalNot LogicalOp = "not"
)

// Filter is either a comparison on one column or a group of child filters.
type Filter struct {
	ColumnID string    `json:"fk_column_id,omitempty" yaml:"fk_column_id,omitempty"`
	Op       FilterOp  `json:"comparison_op,omitempty" yaml:"comparison_op,omitempty"`
	Value    any       `json:"value,omitempty" yaml:"value,omitempty"`
	Logical  LogicalOp `json:"logical_op,omitempty" yaml:"logical_op,omitempty"`
	IsGroup  bool      `json:"is_group,omitempty" yaml:"is_group,omitempty"`
	Children []Filter  `json:"children,omitempty" yaml:"children,omitempty"`
}

// SortDirection orders a sort key.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort orders the result by one column.
type Sort struct {
	ColumnID  string        `json:"fk_column_id" yaml:"fk_column_id"`
	Direction SortDirection `json:"direction" yaml:"direction"`
}

// Pagination limits the result window. A zero Limit means no limit.
type Pagination struct {
	Limit  int `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset int `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// Principal is the resolved caller identity. Roles only affect column visibility.
type Principal struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}
