package fieldhandler

import (
	"log/slog"
	"strconv"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/cte"
	"github.com/leapstack-labs/leapgrid/pkg/dialect"
	"github.com/leapstack-labs/leapgrid/pkg/formula"
	"github.com/leapstack-labs/leapgrid/pkg/relation"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// RootAlias is the alias of the queried model's table.
const RootAlias = "t0"

// DefaultMaxLongTextLength caps LongText values unless the Env sets its own limit.
const DefaultMaxLongTextLength = 100000

// MaxSingleLineTextLength caps SingleLineText values.
const MaxSingleLineTextLength = 255

// Metadata supplies the models and columns of one compilation.
// relation.Snapshot implements it.
type Metadata interface {
	relation.Lookup
	// ModelColumns returns the columns of a model ordered by Order.
	ModelColumns(modelID string) []*core.Column
}

// Env is the state of one compilation. Handlers compile referenced columns
// through it, which tracks the reference path to detect cycles and hands
// out table aliases. An Env is not safe for concurrent use.
type Env struct {
	Dialect *dialect.Dialect
	Meta    Metadata
	CTE     *cte.Generator
	Logger  *slog.Logger

	// TableSchema qualifies physical table names; empty uses the connection default.
	TableSchema string
	// MaxLongTextLength overrides DefaultMaxLongTextLength when positive.
	MaxLongTextLength int

	registry *Registry
	visiting map[string]bool
	formulas map[string]formula.Node
	aliases  int
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithRegistry makes the Env resolve handlers from r instead of Default().
func WithRegistry(r *Registry) EnvOption {
	return func(e *Env) { e.registry = r }
}

// WithTableSchema qualifies every physical table with schema.
func WithTableSchema(schema string) EnvOption {
	return func(e *Env) { e.TableSchema = schema }
}

// WithMaxLongTextLength sets the LongText limit.
func WithMaxLongTextLength(n int) EnvOption {
	return func(e *Env) { e.MaxLongTextLength = n }
}

// NewEnv creates the environment of one compilation against a source with
// dialect d and capabilities caps.
func NewEnv(d *dialect.Dialect, caps core.Capabilities, meta Metadata, logger *slog.Logger, opts ...EnvOption) *Env {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Env{
		Dialect:  d,
		Meta:     meta,
		CTE:      cte.NewGenerator(caps),
		Logger:   logger,
		registry: defaultRegistry,
		visiting: make(map[string]bool),
		formulas: make(map[string]formula.Node),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handler returns the handler of col for the Env's dialect.
func (e *Env) Handler(col *core.Column) Handler {
	return e.registry.Resolve(col.UIType, e.Dialect.Name)
}

// NextAlias returns a table alias unused in this compilation.
func (e *Env) NextAlias() string {
	e.aliases++
	return "r" + strconv.Itoa(e.aliases)
}

// Table returns the physical table of m under alias.
func (e *Env) Table(m *core.Model, alias string) *sqlb.TableRef {
	return sqlb.Table(m.TableName).Schema(e.TableSchema).As(alias)
}

func (e *Env) maxLongText() int {
	if e.MaxLongTextLength > 0 {
		return e.MaxLongTextLength
	}
	return DefaultMaxLongTextLength
}

// resolve compiles the select expression of col. Unresolved references
// propagate to the caller so that a broken link anywhere in a chain turns
// the whole computed column into NULL.
func (e *Env) resolve(col *core.Column, alias string) (sqlb.Expr, error) {
	if e.visiting[col.ID] {
		return nil, core.Unresolved(col.ID, "circular reference")
	}
	e.visiting[col.ID] = true
	defer delete(e.visiting, col.ID)
	return e.Handler(col).BuildSelect(e, col, alias)
}

// Select returns the select expression of col. A column whose references
// cannot be resolved selects NULL.
func (e *Env) Select(col *core.Column, alias string) (sqlb.Expr, error) {
	expr, err := e.resolve(col, alias)
	if core.IsUnresolved(err) {
		e.unresolved(col, err)
		return sqlb.Null, nil
	}
	return expr, err
}

// Filter returns the predicate of f on col. A column whose references cannot
// be resolved is filtered as NULL.
func (e *Env) Filter(col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	pred, err := e.Handler(col).BuildFilter(e, col, alias, f)
	if core.IsUnresolved(err) {
		e.unresolved(col, err)
		return compare(col, sqlb.Null, f, comparison{})
	}
	return pred, err
}

// Sort returns the expression col is ordered by.
func (e *Env) Sort(col *core.Column, alias string) (sqlb.Expr, error) {
	expr, err := e.Handler(col).BuildSort(e, col, alias)
	if core.IsUnresolved(err) {
		e.unresolved(col, err)
		return sqlb.Null, nil
	}
	return expr, err
}

// ParseUserInput validates a value written to col.
func (e *Env) ParseUserInput(col *core.Column, value any) (any, error) {
	return e.Handler(col).ParseUserInput(e, col, value)
}

// Render converts a value read for col to its API form.
func (e *Env) Render(col *core.Column, value any) (any, error) {
	return e.Handler(col).Render(e, col, value)
}

func (e *Env) unresolved(col *core.Column, err error) {
	e.Logger.Debug("column resolves to NULL",
		slog.String("column", col.ID),
		slog.String("reason", err.Error()))
}

// parseFormula parses src once per compilation under key.
func (e *Env) parseFormula(col *core.Column, key, src string) (formula.Node, error) {
	if n, ok := e.formulas[key]; ok {
		return n, nil
	}
	n, err := formula.Parse(src)
	if err != nil {
		return nil, core.Unresolved(col.ID, "%v", err)
	}
	e.formulas[key] = n
	return n, nil
}
