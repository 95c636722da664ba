// Package compare implements the tolerant value comparison used for drift
// detection. Manifest scalars and provider attributes frequently disagree on
// representation ("300" vs 300, "true" vs true), so equality is decided after
// coercion rather than on raw types.
package compare

import (
	"fmt"
	"strconv"

	"github.com/google/go-cmp/cmp"
)

// Equal reports whether a declared value and an observed value are the same
// for drift purposes.
func Equal(declared, observed any) bool {
	if declared == nil && observed == nil {
		return true
	}
	if declared == nil || observed == nil {
		return false
	}

	if db, ok1 := toBool(declared); ok1 {
		if ob, ok2 := toBool(observed); ok2 {
			return db == ob
		}
	}

	if df, ok1 := toFloat(declared); ok1 {
		if of, ok2 := toFloat(observed); ok2 {
			return df == of
		}
	}

	return cmp.Equal(normalize(declared), normalize(observed))
}

// normalize maps nested structures onto a canonical shape so go-cmp compares
// values, not container types.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		if f, ok := toFloat(v); ok {
			return f
		}
		return fmt.Sprintf("%v", v)
	}
}

// Number reports v as a float64 when it is numeric or a numeric string.
func Number(v any) (float64, bool) {
	return toFloat(v)
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch t {
		case "true", "True":
			return true, true
		case "false", "False":
			return false, true
		}
	}
	return false, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}
