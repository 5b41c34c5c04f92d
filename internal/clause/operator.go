package clause

import (
	"errors"
	"fmt"
)

// ErrUnsupported is wrapped by every malformed operator/value combination.
// It signals a programming error and is never worth retrying.
var ErrUnsupported = errors.New("unsupported criterion")

// Operator is an explicit per-condition comparison.
type Operator int

const (
	Equal Operator = iota + 1
	Diff
	Bigger
	BiggerEqu
	Smaller
	SmallerEqu
	Like
	FullLike
	Upper
	UpperLike
	UpperFullLike
	DayEqu
	MonthEqu
	YearEqu
	IsNull
	SQLFunct
	SQLFunctFullLike
	Or

	numOperators
)

var operatorNames = [numOperators]string{
	Equal:            "EQUAL",
	Diff:             "DIFF",
	Bigger:           "BIGGER",
	BiggerEqu:        "BIGGER_EQU",
	Smaller:          "SMALLER",
	SmallerEqu:       "SMALLER_EQU",
	Like:             "LIKE",
	FullLike:         "FULL_LIKE",
	Upper:            "UPPER",
	UpperLike:        "UPPER_LIKE",
	UpperFullLike:    "UPPER_FULL_LIKE",
	DayEqu:           "DAY_EQU",
	MonthEqu:         "MONTH_EQU",
	YearEqu:          "YEAR_EQU",
	IsNull:           "IS_NULL",
	SQLFunct:         "SQL_FUNCT",
	SQLFunctFullLike: "SQL_FUNCT_FULL_LIKE",
	Or:               "OR",
}

func (o Operator) String() string {
	if o.valid() {
		return operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

func (o Operator) valid() bool {
	return o > 0 && o < numOperators
}

// ParseOperator parses an operator name such as "BIGGER_EQU".
func ParseOperator(name string) (Operator, error) {
	for o := Equal; o < numOperators; o++ {
		if operatorNames[o] == name {
			return o, nil
		}
	}
	return 0, fmt.Errorf("operator %q: %w", name, ErrUnsupported)
}

// Cond is one operator/value pair of a criterion.
type Cond struct {
	Op    Operator
	Value any
}

// C builds a Cond.
// Example: Ops{C(BiggerEqu, from), C(SmallerEqu, to)}
func C(op Operator, v any) Cond {
	return Cond{Op: op, Value: v}
}

// Ops is an ordered operator map. All conditions are ANDed.
type Ops []Cond

// CloneValue implements vo.Cloner.
func (o Ops) CloneValue() any {
	c := make(Ops, len(o))
	for i, cond := range o {
		if nested, ok := cond.Value.(Ops); ok {
			cond.Value = nested.CloneValue()
		}
		c[i] = cond
	}
	return c
}

// OrGroup builds the nested OR criterion: the given conditions are ORed and
// the group is ANDed with the rest of the criteria.
func OrGroup(conds ...Cond) Ops {
	return Ops{{Op: Or, Value: Ops(conds)}}
}

// Funct is the function/value pair consumed by SQLFunct and SQLFunctFullLike.
type Funct struct {
	Name  string
	Value any
}

func functOf(v any) (Funct, error) {
	switch f := v.(type) {
	case Funct:
		return f, nil
	case *Funct:
		if f != nil {
			return *f, nil
		}
	case []any:
		if len(f) == 2 {
			if name, ok := f[0].(string); ok && name != "" {
				return Funct{Name: name, Value: f[1]}, nil
			}
		}
	}
	return Funct{}, fmt.Errorf("%w: SQL function criterion needs a (function, value) pair, got %T", ErrUnsupported, v)
}
