package core

import "strconv"

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// JSONMap coerces an arbitrary decoded JSON value to an object, returning an
// empty map for anything that is not one. Rule return values and spec
// defaults are objects in well-formed data, but the evaluator never assumes
// that.
func JSONMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
