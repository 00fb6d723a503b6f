// Package fieldhandler maps column UI types to the code that reads, writes
// and queries them.
//
// Handlers are looked up in a two-level table, UI type then dialect name,
// with DefaultDialect as the per-type fallback and a generic handler for
// UI types nobody registered. Handlers of computed columns (lookup, rollup,
// formula, links) compile other columns through the Env, so a chain of
// computed columns becomes one nested SQL expression.
package fieldhandler

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// DefaultDialect is the dialect key consulted when a UI type has no handler
// for the requested dialect.
const DefaultDialect = "_default"

// Handler implements one UI type.
type Handler interface {
	// ParseUserInput validates a value written by a user and converts it to
	// the value bound for storage. Failures are *core.InvalidValueError.
	ParseUserInput(env *Env, col *core.Column, value any) (any, error)
	// Render converts a value read from the database to its API form.
	Render(env *Env, col *core.Column, value any) (any, error)
	// BuildSelect returns the expression reading col from the row aliased alias.
	BuildSelect(env *Env, col *core.Column, alias string) (sqlb.Expr, error)
	// BuildFilter returns the predicate for f on col.
	BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error)
	// BuildSort returns the expression to order by.
	BuildSort(env *Env, col *core.Column, alias string) (sqlb.Expr, error)
}

// Registry holds handlers by UI type and dialect. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.UIType]map[string]Handler
	fallback Handler
}

// NewRegistry returns a registry holding the built-in handlers.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[core.UIType]map[string]Handler),
		fallback: generic{},
	}
	registerBuiltins(r)
	return r
}

// Register installs h for ui on dialectName. Use DefaultDialect for the
// handler used by every dialect without its own.
func (r *Registry) Register(ui core.UIType, dialectName string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byDialect, ok := r.handlers[ui]
	if !ok {
		byDialect = make(map[string]Handler)
		r.handlers[ui] = byDialect
	}
	byDialect[dialectName] = h
}

// Resolve returns the handler for ui on dialectName. It never fails: the
// lookup falls back to the DefaultDialect entry and then to the generic
// handler.
func (r *Registry) Resolve(ui core.UIType, dialectName string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if byDialect, ok := r.handlers[ui]; ok {
		if h, ok := byDialect[dialectName]; ok {
			return h
		}
		if h, ok := byDialect[DefaultDialect]; ok {
			return h
		}
	}
	return r.fallback
}

// Types returns the UI types with at least one registered handler (sorted).
func (r *Registry) Types() []core.UIType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]core.UIType, 0, len(r.handlers))
	for ui := range r.handlers {
		types = append(types, ui)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Dialects returns the dialects with a handler of their own for ui (sorted).
// DefaultDialect is included when ui has a shared handler.
func (r *Registry) Dialects(ui core.UIType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers[ui]))
	for name := range r.handlers[ui] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register installs h in the process-wide registry.
func Register(ui core.UIType, dialectName string, h Handler) {
	defaultRegistry.Register(ui, dialectName, h)
}

// Resolve looks up a handler in the process-wide registry.
func Resolve(ui core.UIType, dialectName string) Handler {
	return defaultRegistry.Resolve(ui, dialectName)
}

func registerBuiltins(r *Registry) {
	for _, ui := range []core.UIType{core.UITypeID, core.UITypeForeignKey, core.UITypeURL, core.UITypePhoneNumber, core.UITypeSpecificDBType} {
		r.Register(ui, DefaultDialect, generic{})
	}

	r.Register(core.UITypeSingleLineText, DefaultDialect, text{maxLen: MaxSingleLineTextLength})
	r.Register(core.UITypeEmail, DefaultDialect, email{})
	r.Register(core.UITypeLongText, DefaultDialect, longText{})

	r.Register(core.UITypeNumber, DefaultDialect, number{})
	r.Register(core.UITypeNumber, "mysql", number{lenient: true})
	r.Register(core.UITypeNumber, "sqlite", number{lenient: true})
	r.Register(core.UITypeDecimal, DefaultDialect, decimal{defaultPrecision: -1})
	r.Register(core.UITypeCurrency, DefaultDialect, decimal{defaultPrecision: 2})
	r.Register(core.UITypePercent, DefaultDialect, decimal{defaultPrecision: -1})
	r.Register(core.UITypeRating, DefaultDialect, rating{})
	r.Register(core.UITypeDuration, DefaultDialect, duration{})
	r.Register(core.UITypeYear, DefaultDialect, year{})

	r.Register(core.UITypeCheckbox, DefaultDialect, checkbox{})
	r.Register(core.UITypeCheckbox, "sqlite", checkbox{numeric: true})
	r.Register(core.UITypeCheckbox, "mysql", checkbox{numeric: true})

	times := []struct {
		dialect string
		bind    bindFunc
	}{
		{DefaultDialect, bindRFC3339},
		{"postgres", bindTime},
		{"mysql", bindSQLText},
		{"sqlite", bindSQLText},
	}
	for _, v := range times {
		r.Register(core.UITypeDate, v.dialect, newDateTime(false, v.bind))
		r.Register(core.UITypeDateTime, v.dialect, newDateTime(true, v.bind))
		r.Register(core.UITypeCreatedTime, v.dialect, systemTime{newDateTime(true, v.bind)})
		r.Register(core.UITypeLastModifiedTime, v.dialect, systemTime{newDateTime(true, v.bind)})
	}

	r.Register(core.UITypeJSON, DefaultDialect, jsonField{})
	r.Register(core.UITypeJSON, "postgres", jsonField{castText: true})
	r.Register(core.UITypeJSON, "mysql", jsonField{castText: true})

	r.Register(core.UITypeSingleSelect, DefaultDialect, singleSelect{})
	r.Register(core.UITypeMultiSelect, DefaultDialect, multiSelect{})

	r.Register(core.UITypeLinkToAnother, DefaultDialect, link{})
	r.Register(core.UITypeLinks, DefaultDialect, links{})
	r.Register(core.UITypeLookup, DefaultDialect, lookup{})
	r.Register(core.UITypeRollup, DefaultDialect, rollup{})
	r.Register(core.UITypeFormula, DefaultDialect, formulaField{})
	r.Register(core.UITypeBarcode, DefaultDialect, barcode{})
	r.Register(core.UITypeQrCode, DefaultDialect, barcode{})
	r.Register(core.UITypeButton, DefaultDialect, button{})
}
