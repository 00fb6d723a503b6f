package fieldhandler

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// checkbox stores booleans. Numeric instances bind 1/0 for databases
// without a boolean type.
type checkbox struct {
	generic
	numeric bool
}

func (h checkbox) value(b bool) any {
	if !h.numeric {
		return b
	}
	if b {
		return int64(1)
	}
	return int64(0)
}

func (h checkbox) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if value == nil {
		return h.value(false), nil
	}
	b, ok := toBool(value)
	if !ok {
		return nil, core.ErrInvalidValue(col, value, "must be true or false")
	}
	return h.value(b), nil
}

func (checkbox) Render(_ *Env, _ *core.Column, value any) (any, error) {
	b, _ := toBool(value)
	return b, nil
}

func (h checkbox) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	e, err := env.resolve(col, alias)
	if err != nil {
		return nil, err
	}
	switch f.Op {
	case core.OpChecked:
		return sqlb.EQ(e, sqlb.Bool(true)), nil
	case core.OpNotChecked:
		return sqlb.EQ(sqlb.Coalesce(e, sqlb.Bool(false)), sqlb.Bool(false)), nil
	}
	return compare(col, e, f, comparison{bind: func(v any) (any, error) {
		b, ok := toBool(v)
		if !ok {
			return nil, core.ErrInvalidValue(col, v, "must be true or false")
		}
		return h.value(b), nil
	}})
}

// bindFunc converts a parsed time to the value a driver binds.
type bindFunc func(t time.Time, withTime bool) any

const (
	dateLayout    = "2006-01-02"
	sqlTimeLayout = "2006-01-02 15:04:05"
)

func bindTime(t time.Time, withTime bool) any {
	if !withTime {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.UTC()
}

func bindSQLText(t time.Time, withTime bool) any {
	if !withTime {
		return t.Format(dateLayout)
	}
	return t.UTC().Format(sqlTimeLayout)
}

func bindRFC3339(t time.Time, withTime bool) any {
	if !withTime {
		return t.Format(dateLayout)
	}
	return t.UTC().Format(time.RFC3339)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	sqlTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05-07:00",
	dateLayout,
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case []byte:
		return parseTime(string(t))
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// dateTime handles Date (withTime false) and DateTime columns. Values render
// as RFC 3339 in UTC, dates as YYYY-MM-DD.
type dateTime struct {
	generic
	withTime bool
	bind     bindFunc
}

func newDateTime(withTime bool, bind bindFunc) dateTime {
	return dateTime{withTime: withTime, bind: bind}
}

func (h dateTime) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	t, ok := parseTime(value)
	if !ok {
		return nil, core.ErrInvalidValue(col, value, "not a valid date")
	}
	return h.bind(t, h.withTime), nil
}

func (h dateTime) Render(_ *Env, _ *core.Column, value any) (any, error) {
	t, ok := parseTime(value)
	if !ok {
		return normalize(value), nil
	}
	if !h.withTime {
		return t.Format(dateLayout), nil
	}
	return t.UTC().Format(time.RFC3339), nil
}

func (h dateTime) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	return filterColumn(env, col, alias, f, comparison{bind: func(v any) (any, error) {
		t, ok := parseTime(v)
		if !ok {
			return nil, core.ErrInvalidValue(col, v, "not a valid date")
		}
		return h.bind(t, h.withTime), nil
	}})
}

// systemTime is a timestamp maintained by the database.
type systemTime struct {
	dateTime
}

func (systemTime) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	return rejectWrite(col, value)
}

// jsonField stores JSON documents as text. Instances with castText read
// native JSON columns as text so every dialect renders the same way.
type jsonField struct {
	generic
	castText bool
}

func (jsonField) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if !json.Valid([]byte(v)) {
			return nil, core.ErrInvalidValue(col, value, "not valid JSON")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, core.ErrInvalidValue(col, value, "not valid JSON")
		}
		return string(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, core.ErrInvalidValue(col, value, "not valid JSON: %v", err)
	}
	return string(b), nil
}

func (jsonField) Render(_ *Env, _ *core.Column, value any) (any, error) {
	value = normalize(value)
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	var doc any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return s, nil
	}
	return doc, nil
}

func (h jsonField) BuildSelect(_ *Env, col *core.Column, alias string) (sqlb.Expr, error) {
	e, err := physical(col, alias)
	if err != nil || !h.castText {
		return e, err
	}
	return sqlb.CastText(e), nil
}

type singleSelect struct {
	generic
}

func (singleSelect) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	s, ok := toString(value)
	if !ok || !col.Options.Select.Has(s) {
		return nil, core.ErrInvalidValue(col, value, "%v is not an option", value)
	}
	return s, nil
}

// multiSelect stores the chosen options comma separated, so options
// containing a comma cannot be chosen.
type multiSelect struct {
	generic
}

func (multiSelect) ParseUserInput(_ *Env, col *core.Column, value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	var chosen []string
	for _, v := range listValue(value) {
		s, ok := toString(v)
		if !ok || !col.Options.Select.Has(s) {
			return nil, core.ErrInvalidValue(col, value, "%v is not an option", v)
		}
		if strings.Contains(s, ",") {
			return nil, core.ErrInvalidValue(col, value, "option %q contains a comma", s)
		}
		if !slices.Contains(chosen, s) {
			chosen = append(chosen, s)
		}
	}
	return strings.Join(chosen, ","), nil
}

func (multiSelect) Render(_ *Env, _ *core.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	s, ok := toString(value)
	if !ok {
		return value, nil
	}
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

// BuildFilter matches "in" against each stored option instead of the
// whole list.
func (multiSelect) BuildFilter(env *Env, col *core.Column, alias string, f core.Filter) (sqlb.Expr, error) {
	e, err := env.resolve(col, alias)
	if err != nil {
		return nil, err
	}
	if f.Op != core.OpIn {
		return compare(col, e, f, comparison{textual: true})
	}
	var preds []sqlb.Expr
	for _, v := range listValue(f.Value) {
		opt, _ := toString(v)
		preds = append(preds, sqlb.Or(
			sqlb.EQ(e, sqlb.Arg(opt)),
			sqlb.Like(e, sqlb.Arg(opt+",%")),
			sqlb.Like(e, sqlb.Arg("%,"+opt)),
			sqlb.Like(e, sqlb.Arg("%,"+opt+",%")),
		))
	}
	if len(preds) == 0 {
		return sqlb.In(e), nil
	}
	return sqlb.Or(preds...), nil
}
