package eval

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// toFloat coerces a decoded JSON value (or a resolved user field) to a
// float64 for numeric comparison. Returns false for anything non-numeric:
// numeric operators fail closed rather than guessing.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toString coerces a value to its canonical string form for membership and
// substring operators. Whole floats render without a decimal point so that
// numbers survive a round trip through JSON. Returns false for nil.
func toString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	default:
		return "", false
	}
}

// toSlice normalizes a target value to a collection: JSON arrays pass
// through, any other non-nil value becomes a single-element collection.
func toSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return []any{v}, true
	}
}

// looseEqual compares two decoded JSON values. Numbers of any underlying
// type are equal when their float64 forms match; strings never compare
// equal to numbers.
func looseEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
		return false
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
		return false
	}
	if af, aok := toNumber(a); aok {
		if bf, bok := toNumber(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// toNumber is toFloat without the string coercion.
func toNumber(value any) (float64, bool) {
	if _, ok := value.(string); ok {
		return 0, false
	}
	return toFloat(value)
}

// compareNumbers runs cmp over the float64 coercions of both sides, failing
// closed when either side is not numeric.
func compareNumbers(value, target any, cmp func(a, b float64) bool) bool {
	a, aok := toFloat(value)
	b, bok := toFloat(target)
	if !aok || !bok {
		return false
	}
	return cmp(a, b)
}

// compareVersions strips any -prerelease suffix from both sides, then
// compares dot-separated integer components left to right, treating missing
// trailing components as 0. A non-numeric component makes the comparison
// fail (reported through err so the caller can log it).
func compareVersions(value, target any, cmp func(result int) bool) (bool, error) {
	v1, ok1 := toString(value)
	v2, ok2 := toString(target)
	if !ok1 || !ok2 {
		return false, nil
	}

	result, err := versionCompare(stripPrerelease(v1), stripPrerelease(v2))
	if err != nil {
		return false, err
	}
	return cmp(result), nil
}

func stripPrerelease(version string) string {
	if i := strings.IndexByte(version, '-'); i > 0 {
		return version[:i]
	}
	return version
}

func versionCompare(v1, v2 string) (int, error) {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	for i := 0; i < len(parts1) || i < len(parts2); i++ {
		c1, c2 := 0, 0
		var err error
		if i < len(parts1) {
			if c1, err = strconv.Atoi(parts1[i]); err != nil {
				return 0, err
			}
		}
		if i < len(parts2) {
			if c2, err = strconv.Atoi(parts2[i]); err != nil {
				return 0, err
			}
		}
		if c1 < c2 {
			return -1, nil
		}
		if c1 > c2 {
			return 1, nil
		}
	}
	return 0, nil
}

// matchStringInArray reports whether cmp matches the value against any
// element of the target collection.
func matchStringInArray(value, target any, cmp func(value, candidate string) bool) bool {
	str, ok := toString(value)
	if !ok {
		return false
	}
	candidates, ok := toSlice(target)
	if !ok {
		return false
	}
	for _, candidate := range candidates {
		cs, ok := toString(candidate)
		if !ok {
			continue
		}
		if cmp(str, cs) {
			return true
		}
	}
	return false
}

func equalsIgnoreCase(a, b string) bool  { return strings.EqualFold(a, b) }
func equalsExact(a, b string) bool       { return a == b }
func startsWithAnyCase(a, b string) bool { return hasPrefixFold(a, b) }
func endsWithAnyCase(a, b string) bool   { return hasSuffixFold(a, b) }
func containsAnyCase(a, b string) bool {
	return strings.Contains(strings.ToLower(a), strings.ToLower(b))
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

// matchesRegex runs a regular-expression search (not a full match) of
// pattern over the value.
func matchesRegex(value, target any) (bool, error) {
	pattern, ok := toString(target)
	if !ok {
		return false, nil
	}
	str, ok := toString(value)
	if !ok {
		return false, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(str), nil
}

// arrayContainsAny reports whether any target element is loosely present in
// the value array.
func arrayContainsAny(value, target []any) bool {
	for _, t := range target {
		if sliceHas(value, t) {
			return true
		}
	}
	return false
}

// arrayContainsAll reports whether every target element is loosely present
// in the value array.
func arrayContainsAll(value, target []any) bool {
	for _, t := range target {
		if !sliceHas(value, t) {
			return false
		}
	}
	return true
}

func sliceHas(haystack []any, needle any) bool {
	for _, item := range haystack {
		if looseEqual(item, needle) {
			return true
		}
	}
	return false
}

// parseTime interprets a value as a point in time: numeric epochs (seconds
// when under 11 decimal digits, milliseconds otherwise) or an ISO-8601
// string. Returns an error only for strings that parse as neither.
func parseTime(value any) (time.Time, bool, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false, nil
	case float64:
		return epochToTime(int64(v)), true, nil
	case int64:
		return epochToTime(v), true, nil
	case int:
		return epochToTime(int64(v)), true, nil
	case string:
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return epochToTime(epoch), true, nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false, err
		}
		return t, true, nil
	default:
		return time.Time{}, false, nil
	}
}

func epochToTime(epoch int64) time.Time {
	// Fewer than 11 decimal digits means seconds; millisecond epochs with
	// that few digits would land before 1970.
	if digitCount(epoch) < 11 {
		epoch *= 1000
	}
	return time.UnixMilli(epoch).UTC()
}

func digitCount(v int64) int {
	if v == 0 {
		return 1
	}
	return int(math.Floor(math.Log10(math.Abs(float64(v))))) + 1
}

// compareDates applies cmp to the parsed time forms of both sides, failing
// closed when either is missing or unparseable.
func compareDates(value, target any, cmp func(a, b time.Time) bool) (bool, error) {
	a, aok, err := parseTime(value)
	if err != nil {
		return false, err
	}
	b, bok, err := parseTime(target)
	if err != nil {
		return false, err
	}
	if !aok || !bok {
		return false, nil
	}
	return cmp(a, b), nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
