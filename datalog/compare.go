package datalog

import (
	"fmt"
	"strings"
	"time"
)

// CompareValues compares two constant values and returns -1, 0, or 1,
// the way the teacher's datalog/compare.go compared Datom values:
// numeric types are compared numerically (int/int64/float64 cross
// promoted), strings lexically, bools false-before-true, time.Time
// chronologically, and anything else falls back to its %v string form.
// A string, bool or time.Time compared with a value of another kind, or
// a number compared with a non-number, yields -1 whichever side it is
// on, so the order is total only among values of one kind (int, int64
// and float64 counting as one). MIN/MAX aggregation uses it.
func CompareValues(left, right interface{}) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	switch l := left.(type) {
	case int:
		return compareNumeric(int64(l), right)
	case int64:
		return compareNumeric(l, right)
	case float64:
		return compareFloat(l, right)
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r)
		}
		return -1
	case bool:
		if r, ok := right.(bool); ok {
			switch {
			case l == r:
				return 0
			case !l && r:
				return -1
			default:
				return 1
			}
		}
		return -1
	case time.Time:
		if r, ok := right.(time.Time); ok {
			switch {
			case l.Before(r):
				return -1
			case l.After(r):
				return 1
			default:
				return 0
			}
		}
		return -1
	}

	return strings.Compare(stringValue(left), stringValue(right))
}

func compareNumeric(left int64, right interface{}) int {
	switch r := right.(type) {
	case int:
		return compareInt64s(left, int64(r))
	case int64:
		return compareInt64s(left, r)
	case float64:
		return compareFloat(float64(left), right)
	}
	return -1
}

func compareFloat(left float64, right interface{}) int {
	switch r := right.(type) {
	case int:
		return compareFloats(left, float64(r))
	case int64:
		return compareFloats(left, float64(r))
	case float64:
		return compareFloats(left, r)
	}
	return -1
}

func compareInt64s(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ValuesEqual reports whether two constant values are equal under the
// same cross-numeric-type rules CompareValues uses for ordering (an int
// 3 and an int64 3 must compare equal for joins to work regardless of
// which literal form a caller used).
func ValuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return CompareValues(a, b) == 0
}

func stringValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// TupleKey builds a stable map key for a tuple of constant values, used
// to bucket rows by group key during aggregation without requiring
// values to be Go-comparable (e.g. mixed int/int64).
func TupleKey(values []interface{}) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(stringValue(v))
	}
	return b.String()
}
