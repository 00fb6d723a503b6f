package fieldhandler

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case fmt.Stringer:
		return s.String(), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return fmt.Sprint(s), true
	}
	return "", false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return toInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || !fitsInt64(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		return toInt64(string(n))
	case []byte:
		return toInt64(string(n))
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return toInt64(f)
		}
	}
	return 0, false
}

// int64Bound is 2^63, the first float64 above the int64 range.
const int64Bound = float64(1 << 63)

// fitsInt64 reports whether f converts to int64 without overflow. NaN fails
// both comparisons.
func fitsInt64(f float64) bool {
	return f >= -int64Bound && f < int64Bound
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		return toFloat64(string(n))
	case []byte:
		return toFloat64(string(n))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case []byte:
		return toBool(string(b))
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "on", "t", "y":
			return true, true
		case "false", "0", "no", "off", "f", "n", "":
			return false, true
		}
		return false, false
	}
	if i, ok := toInt64(v); ok {
		return i != 0, true
	}
	return false, false
}

// isEmpty reports whether a user input clears the field.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func roundTo(f float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(f*p) / p
}

// normalize turns driver byte slices into strings.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
