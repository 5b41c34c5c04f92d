package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/roach88/recsql/internal/store"
	"github.com/roach88/recsql/internal/vo"
)

// validIdentifier guards table and column names, which cannot be bound.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion and returns the failures.
func EvaluateAssertions(ctx context.Context, st *store.Store, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(ctx, st, a)
		case AssertRowCount:
			err = assertRowCount(ctx, st, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, e := range trace {
		if e.Op == a.Op && e.Status == a.Status {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s step(s) with %s", a.Count, a.Op, a.Status),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func assertRowCount(ctx context.Context, st *store.Store, a Assertion) error {
	where, args, err := buildWhereClause(a.Table, a.Where)
	if err != nil {
		return err
	}
	var n int
	if err := st.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+a.Table+where, args...).Scan(&n); err != nil {
		return fmt.Errorf("count %s: %w", a.Table, err)
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d row(s) in %s where %s", a.Count, a.Table, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertFinalState requires exactly one matching row whose columns
// include the expected values.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	where, args, err := buildWhereClause(a.Table, a.Where)
	if err != nil {
		return err
	}
	rows, err := st.DB().QueryContext(ctx, "SELECT * FROM "+a.Table+where, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", a.Table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("a row in %s where %s", a.Table, formatWhere(a.Where)),
			Actual:   "no row",
		}
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhere(a.Where)),
			Actual:   "several rows",
		}
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	if msgs := matchSubset(a.Expect, row); len(msgs) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s to match", a.Table, formatWhere(a.Where)),
			Actual:   strings.Join(msgs, "; "),
		}
	}
	return nil
}

// buildWhereClause returns " WHERE a = ? AND b = ?" with keys sorted.
func buildWhereClause(table string, where map[string]any) (string, []any, error) {
	if !validIdentifier.MatchString(table) {
		return "", nil, fmt.Errorf("invalid table name %q", table)
	}
	if len(where) == 0 {
		return "", nil, nil
	}
	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		if !validIdentifier.MatchString(k) {
			return "", nil, fmt.Errorf("invalid column name %q", k)
		}
		if where[k] == nil {
			clauses = append(clauses, k+" IS NULL")
			continue
		}
		clauses = append(clauses, k+" = ?")
		args = append(args, where[k])
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, where[k])
	}
	return strings.Join(parts, " AND ")
}

// matchSubset compares the expected keys only.
func matchSubset(expected, actual map[string]any) []string {
	var msgs []string
	for _, k := range sortedKeys(expected) {
		got, ok := actual[k]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("%s missing", k))
			continue
		}
		if !sameValue(expected[k], got) {
			msgs = append(msgs, fmt.Sprintf("%s = %v (%T), want %v (%T)", k, got, got, expected[k], expected[k]))
		}
	}
	return msgs
}

// sameValue compares a YAML value with a value read back from SQLite or
// the engine. Numbers compare by value, booleans match 0/1, and text
// matches temporal values it parses to.
func sameValue(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case bool:
		got, err := vo.Coerce(vo.Boolean, actual)
		return err == nil && got == exp
	case int, int64, uint64, float64:
		if b, ok := actual.(bool); ok {
			actual = 0
			if b {
				actual = 1
			}
		}
		want, err := vo.Coerce(vo.Double, exp)
		if err != nil {
			return false
		}
		got, err := vo.Coerce(vo.Double, actual)
		return err == nil && got == want
	case string:
		switch act := actual.(type) {
		case time.Time:
			want, err := vo.Coerce(vo.Timestamp, exp)
			return err == nil && want.(time.Time).Equal(act)
		case string:
			return act == exp
		}
		return fmt.Sprint(actual) == exp
	}
	return reflect.DeepEqual(expected, actual)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
