package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// requireKeys checks set membership only; value shapes are validated later by
// the per-field coercions.
func requireKeys(entity string, raw map[string]any, keys []string) error {
	for _, k := range keys {
		if _, ok := raw[k]; !ok {
			return &SchemaError{Entity: entity, Key: k}
		}
	}
	return nil
}

// coerceID turns any raw identifier representation into a string. IDs are
// 64-bit-plus integers upstream; they must never live in a float.
func coerceID(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func coerceBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(strings.TrimSpace(x), "true")
	default:
		return false
	}
}

func coerceInt(v any) (int, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			// Some exports write counters as "12.0".
			f, ferr := x.Float64()
			if ferr != nil {
				return 0, err
			}
			return int(f), nil
		}
		return int(n), nil
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(x))
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func mapFromAny(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
