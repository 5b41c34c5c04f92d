package clause

import (
	"fmt"
	"time"

	"github.com/roach88/recsql/internal/vo"
)

// Args collects positional bind values. Indices are 1-based, matching the
// order of "?" placeholders in the statement text.
type Args struct {
	values []any
	set    []bool
}

// NewArgs returns an Args sized for n parameters. It grows on demand.
func NewArgs(n int) *Args {
	return &Args{values: make([]any, n), set: make([]bool, n)}
}

func (a *Args) put(index int, v any) {
	if index < 1 {
		panic(fmt.Sprintf("clause: bind index %d out of range", index))
	}
	for len(a.values) < index {
		a.values = append(a.values, nil)
		a.set = append(a.set, false)
	}
	a.values[index-1] = v
	a.set[index-1] = true
}

func (a *Args) SetNull(index int) { a.put(index, nil) }
func (a *Args) SetString(index int, s string) { a.put(index, s) }
func (a *Args) SetInt64(index int, n int64) { a.put(index, n) }
func (a *Args) SetFloat64(index int, f float64) { a.put(index, f) }
func (a *Args) SetBool(index int, b bool) { a.put(index, b) }
func (a *Args) SetTime(index int, t time.Time) { a.put(index, t) }
func (a *Args) SetBytes(index int, b []byte) { a.put(index, append([]byte(nil), b...)) }

// SetValue binds v with the setter matching the declared scalar type.
func (a *Args) SetValue(index int, scalar vo.ScalarType, v any) error {
	if v == nil {
		a.SetNull(index)
		return nil
	}
	c, err := vo.Coerce(scalar, v)
	if err != nil {
		return fmt.Errorf("bind %d: %w", index, err)
	}
	switch x := c.(type) {
	case int64:
		a.SetInt64(index, x)
	case float64:
		a.SetFloat64(index, x)
	case string:
		a.SetString(index, x)
	case bool:
		a.SetBool(index, x)
	case time.Time:
		a.SetTime(index, x)
	case []byte:
		a.SetBytes(index, x)
	default:
		return fmt.Errorf("bind %d: %w: %T", index, ErrUnsupported, c)
	}
	return nil
}

// SetAuto binds v by its Go type. Used where no declared type applies, as
// for SQL function arguments.
func (a *Args) SetAuto(index int, v any) error {
	switch x := v.(type) {
	case nil:
		a.SetNull(index)
	case string:
		a.SetString(index, x)
	case []byte:
		a.SetBytes(index, x)
	case bool:
		a.SetBool(index, x)
	case time.Time:
		a.SetTime(index, x)
	case int:
		a.SetInt64(index, int64(x))
	case int32:
		a.SetInt64(index, int64(x))
	case int64:
		a.SetInt64(index, x)
	case float32:
		a.SetFloat64(index, float64(x))
	case float64:
		a.SetFloat64(index, x)
	default:
		return fmt.Errorf("bind %d: %w: %T", index, ErrUnsupported, v)
	}
	return nil
}

// Len is the highest index bound so far.
func (a *Args) Len() int { return len(a.values) }

// Values returns the bound values in placeholder order. A gap is an error.
func (a *Args) Values() ([]any, error) {
	for i, ok := range a.set {
		if !ok {
			return nil, fmt.Errorf("bind %d: %w: parameter never set", i+1, ErrUnsupported)
		}
	}
	out := make([]any, len(a.values))
	copy(out, a.values)
	return out, nil
}

// Set binds the value of one rendered condition at the given position.
// It derives the bound value with the same decision Render used for the
// SQL text, so a parameter always matches its placeholder.
func Set(args *Args, index int, value any, scalar vo.ScalarType, at vo.AttributeType, op Operator) error {
	switch op {
	case IsNull, Or:
		return fmt.Errorf("bind %d: %w: %v binds no value", index, ErrUnsupported, op)
	case SQLFunct, SQLFunctFullLike:
		fn, err := functOf(value)
		if err != nil {
			return fmt.Errorf("bind %d: %w", index, err)
		}
		return args.SetAuto(index, fn.Value)
	}

	f, err := resolve(at, op)
	if err != nil {
		return fmt.Errorf("bind %d: %w", index, err)
	}
	if !f.textual() {
		return args.SetValue(index, scalar, value)
	}
	s, err := f.transform(value)
	if err != nil {
		return fmt.Errorf("bind %d: %w", index, err)
	}
	args.SetString(index, s)
	return nil
}

// BindAll binds params from position start onward and returns the next
// free position.
func BindAll(args *Args, start int, params []Param) (int, error) {
	for _, p := range params {
		if err := p.Bind(args, start); err != nil {
			return start, err
		}
		start++
	}
	return start, nil
}
