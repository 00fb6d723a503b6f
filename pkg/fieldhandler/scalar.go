package fieldhandler

import (
	"encoding/json"
	"math"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// generic reads and writes a physical column without conversion. It serves
// ID, ForeignKey, URL, PhoneNumber and SpecificDBType columns and every UI
// type without a handler. Other handlers embed it.
type generic struct{}

func (generic) ParseUserInput(_ *Env, _ *core.Column, value any) (any, error) {
	return value, nil
}

func (generic) Render(_ *Env, _ *core.Column, value any) (any, error) {
	return normalize(value), nil
}

func (generic) BuildSelect(_ *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	return physical(col, alias)
}

func (generic) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	return filterColumn(env, col, alias, f, comparison{textual: isTextual(col.UIType)})
}

func (generic) BuildSort(env *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	return env.resolve(col, alias)
}

func physical(col *core.Column, alias string) (sqlb.Expr, error) {
	if col.ColumnName == "" {
		return nil, core.Unresolved(col.ID, "column has no physical name")
	}
	return sqlb.C(alias, col.ColumnName), nil
}

// filterColumn compares the select expression of col.
func filterColumn(env *Env, col *core.Column, alias string, f core.Filter, c comparison) (sqlb.Expr, error) {
	e, err := env.resolve(col, alias)
	if err != nil {
		return nil, err
	}
	return compare(col, e, f, c)
}

func rejectWrite(col *core.Column, value any) (any, error) {
	return nil, core.ErrInvalidValue(col, value, "column is read-only")
}

type text struct {
	generic
	maxLen int
}

func (h text) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	s, ok := toString(value)
	if !ok {
		return nil, core.ErrInvalidValue(col, value, "must be text")
	}
	if h.maxLen > 0 && utf8.RuneCountInString(s) > h.maxLen {
		return nil, core.ErrInvalidValue(col, value, "exceeds %d characters", h.maxLen)
	}
	return s, nil
}

type email struct {
	generic
}

func (email) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, core.ErrInvalidValue(col, value, "must be text")
	}
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return nil, core.ErrInvalidValue(col, value, "not a valid email address")
	}
	return s, nil
}

// longText stores free text. Columns with meta.ai hold a JSON envelope
// {"value": ..., ...}; only the value counts against the length limit.
type longText struct {
	generic
}

func (longText) ParseUserInput(env *Env, col *core.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	limit := env.maxLongText()
	if !col.MetaBool("ai") {
		s, ok := toString(value)
		if !ok {
			return nil, core.ErrInvalidValue(col, value, "must be text")
		}
		if utf8.RuneCountInString(s) > limit {
			return nil, core.ErrInvalidValue(col, value, "exceeds %d characters", limit)
		}
		return s, nil
	}

	envelope, err := aiEnvelope(col, value)
	if err != nil {
		return nil, err
	}
	s, _ := toString(envelope["value"])
	if utf8.RuneCountInString(s) > limit {
		return nil, core.ErrInvalidValue(col, value, "exceeds %d characters", limit)
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return nil, core.ErrInvalidValue(col, value, "cannot be encoded: %v", err)
	}
	return string(b), nil
}

func (longText) Render(_ *Env, col *core.Column, value any) (any, error) {
	value = normalize(value)
	if s, ok := value.(string); ok && col.MetaBool("ai") {
		var envelope map[string]any
		if err := json.Unmarshal([]byte(s), &envelope); err == nil {
			return envelope, nil
		}
	}
	return value, nil
}

func aiEnvelope(col *core.Column, value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]any:
		if _, ok := v["value"]; !ok {
			return nil, core.ErrInvalidValue(col, value, "AI value must have a \"value\" field")
		}
		return v, nil
	case string:
		var envelope map[string]any
		if err := json.Unmarshal([]byte(v), &envelope); err == nil {
			if _, ok := envelope["value"]; ok {
				return envelope, nil
			}
		}
		return map[string]any{"value": v}, nil
	}
	return nil, core.ErrInvalidValue(col, value, "must be text")
}

// number holds integers. Strict instances reject non-numeric filter values
// the database would fail to bind.
type number struct {
	generic
	lenient bool
}

func (number) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	n, ok := toInt64(value)
	if !ok {
		return nil, core.ErrInvalidValue(col, value, "must be an integer")
	}
	return n, nil
}

func (number) Render(_ *Env, _ *core.Column, value any) (any, error) {
	return renderNumber(value), nil
}

func (h number) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	return filterColumn(env, col, alias, f, comparison{bind: func(v any) (any, error) {
		if n, ok := toInt64(v); ok {
			return n, nil
		}
		if h.lenient {
			return v, nil
		}
		return nil, core.ErrInvalidValue(col, v, "must be an integer")
	}})
}

func renderNumber(value any) any {
	if value == nil {
		return nil
	}
	if n, ok := toInt64(value); ok {
		return n
	}
	if f, ok := toFloat64(value); ok {
		return f
	}
	return normalize(value)
}

// decimal holds Decimal, Currency and Percent values, rounded to
// meta.precision digits when set.
type decimal struct {
	generic
	// defaultPrecision applies without meta.precision; negative keeps every digit.
	defaultPrecision int
}

func (h decimal) round(col *core.Column, f float64) float64 {
	if p := core.MetaInt(col.Meta, "precision", h.defaultPrecision); p >= 0 {
		return roundTo(f, p)
	}
	return f
}

func (h decimal) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	f, ok := toFloat64(value)
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, core.ErrInvalidValue(col, value, "must be a number")
	}
	return h.round(col, f), nil
}

func (h decimal) Render(_ *Env, col *core.Column, value any) (any, error) {
	if f, ok := toFloat64(value); ok && value != nil {
		return h.round(col, f), nil
	}
	return normalize(value), nil
}

func (decimal) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	return filterColumn(env, col, alias, f, comparison{bind: func(v any) (any, error) {
		if n, ok := toFloat64(v); ok {
			return n, nil
		}
		return nil, core.ErrInvalidValue(col, v, "must be a number")
	}})
}

type rating struct {
	number
}

func (rating) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	limit := core.MetaInt(col.Meta, "max", 5)
	n, ok := toInt64(value)
	if !ok || n < 0 || n > int64(limit) {
		return nil, core.ErrInvalidValue(col, value, "must be between 0 and %d", limit)
	}
	return n, nil
}

// duration holds a number of seconds. Input may also be written as
// "h:mm:ss" or "mm:ss".
type duration struct {
	number
}

func (duration) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	if s, ok := value.(string); ok && strings.Contains(s, ":") {
		secs, ok := parseClock(s)
		if !ok {
			return nil, core.ErrInvalidValue(col, value, "must be seconds or h:mm:ss")
		}
		return secs, nil
	}
	f, ok := toFloat64(value)
	if !ok || f < 0 || !fitsInt64(math.Round(f)) {
		return nil, core.ErrInvalidValue(col, value, "must be seconds or h:mm:ss")
	}
	return int64(math.Round(f)), nil
}

func parseClock(s string) (int64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total int64
	for i, p := range parts {
		n, ok := toInt64(p)
		if !ok || n < 0 || (i > 0 && n >= 60) {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

type year struct {
	number
}

func (year) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	n, ok := toInt64(value)
	if !ok || n < 1000 || n > 9999 {
		return nil, core.ErrInvalidValue(col, value, "must be a year between 1000 and 9999")
	}
	return n, nil
}
