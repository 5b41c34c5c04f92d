package vo

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrTypeMismatch is returned when a value cannot represent a scalar type.
var ErrTypeMismatch = errors.New("type mismatch")

// timeLayouts are tried in order when a temporal value arrives as text.
// Drivers without native time support (SQLite) report timestamps this way.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// IsScalar reports whether v is a Go value Coerce knows how to convert.
// Everything else (criteria, operator maps) is stored verbatim by Record.Set.
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, bool, string, []byte, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// Coerce converts v to the canonical Go representation of t.
// nil stays nil.
func Coerce(t ScalarType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case Integer, Long:
		return toInt64(v)
	case Double:
		return toFloat64(v)
	case String:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case Date, Timestamp:
		return toTime(v)
	case Boolean:
		return toBool(v)
	case Binary, Shape:
		switch b := v.(type) {
		case []byte:
			return bytes.Clone(b), nil
		case string:
			return []byte(b), nil
		}
	default:
		return nil, fmt.Errorf("coerce %T to %v: %w", v, t, ErrUnknownType)
	}
	return nil, fmt.Errorf("coerce %T to %v: %w", v, t, ErrTypeMismatch)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("coerce %d to LONG: overflow: %w", n, ErrTypeMismatch)
		}
		return int64(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		return parseInt(n)
	case []byte:
		return parseInt(string(n))
	}
	return 0, fmt.Errorf("coerce %T to LONG: %w", v, ErrTypeMismatch)
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("coerce %v to LONG: fractional value: %w", f, ErrTypeMismatch)
	}
	return int64(f), nil
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("coerce %q to LONG: %w", s, ErrTypeMismatch)
	}
	return n, nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("coerce %q to DOUBLE: %w", n, ErrTypeMismatch)
		}
		return f, nil
	case []byte:
		return toFloat64(string(n))
	case bool:
		return 0, fmt.Errorf("coerce bool to DOUBLE: %w", ErrTypeMismatch)
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("coerce %T to DOUBLE: %w", v, ErrTypeMismatch)
	}
	return float64(i), nil
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case int64:
		return time.Unix(t, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("coerce %T to TIMESTAMP: %w", v, ErrTypeMismatch)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("coerce %q to TIMESTAMP: %w", s, ErrTypeMismatch)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("coerce %q to BOOLEAN: %w", b, ErrTypeMismatch)
		}
		return parsed, nil
	case []byte:
		return toBool(string(b))
	}
	n, err := toInt64(v)
	if err != nil {
		return false, fmt.Errorf("coerce %T to BOOLEAN: %w", v, ErrTypeMismatch)
	}
	return n != 0, nil
}

// Equal reports whether two attribute values are equal.
// Times compare by instant, byte slices by content.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}
	return reflect.DeepEqual(a, b)
}
