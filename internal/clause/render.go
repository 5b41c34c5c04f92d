package clause

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/recsql/internal/vo"
)

// Fragment is a rendered predicate and the parameters it binds, in
// placeholder order.
type Fragment struct {
	SQL    string
	Params []Param
}

// Param is one pending bind: the raw criterion value plus everything Set
// needs to derive the bound value.
type Param struct {
	Value  any
	Scalar vo.ScalarType
	Search vo.AttributeType
	Op     Operator
}

// Bind binds the parameter at the given 1-based position.
func (p Param) Bind(args *Args, index int) error {
	return Set(args, index, p.Value, p.Scalar, p.Search, p.Op)
}

type rule func(syn Syntax, a vo.Attribute, v any) (Fragment, error)

var rules [numOperators]rule

func init() {
	rules = [numOperators]rule{
		Equal:            valueRule(Equal),
		Diff:             valueRule(Diff),
		Bigger:           valueRule(Bigger),
		BiggerEqu:        valueRule(BiggerEqu),
		Smaller:          valueRule(Smaller),
		SmallerEqu:       valueRule(SmallerEqu),
		Like:             valueRule(Like),
		FullLike:         valueRule(FullLike),
		Upper:            valueRule(Upper),
		UpperLike:        valueRule(UpperLike),
		UpperFullLike:    valueRule(UpperFullLike),
		DayEqu:           valueRule(DayEqu),
		MonthEqu:         valueRule(MonthEqu),
		YearEqu:          valueRule(YearEqu),
		IsNull:           isNullRule,
		SQLFunct:         functRule(SQLFunct, "%s = %s(?)"),
		SQLFunctFullLike: functRule(SQLFunctFullLike, "%s LIKE '%%'||%s(?)||'%%'"),
		Or:               orRule,
	}
	for op := Equal; op < numOperators; op++ {
		if rules[op] == nil {
			panic(fmt.Sprintf("clause: operator %v has no rendering rule", op))
		}
	}
}

// Render translates one attribute criterion into a SQL fragment.
// A nil syn renders with DefaultSyntax.
func Render(syn Syntax, a vo.Attribute, criterion any) (Fragment, error) {
	if syn == nil {
		syn = DefaultSyntax
	}
	switch c := criterion.(type) {
	case Ops:
		return renderAll(syn, a, c)
	case Cond:
		return renderCond(syn, a, c)
	case nil:
		return Fragment{}, fmt.Errorf("%w: %s: nil criterion", ErrUnsupported, a.Name)
	default:
		return renderCond(syn, a, Cond{Op: ImplicitOperator(a), Value: criterion})
	}
}

// ImplicitOperator is the operator applied to a plain criterion value:
// the attribute's search behaviour, or LIKE for strings and EQUAL otherwise.
func ImplicitOperator(a vo.Attribute) Operator {
	switch a.Search {
	case vo.SearchEqual:
		return Equal
	case vo.SearchLike:
		return Like
	case vo.SearchFullLike:
		return FullLike
	case vo.SearchUpper:
		return Upper
	case vo.SearchUpperLike:
		return UpperLike
	case vo.SearchUpperFullLike:
		return UpperFullLike
	case vo.SearchDayEqu:
		return DayEqu
	case vo.SearchMonthEqu:
		return MonthEqu
	case vo.SearchYearEqu:
		return YearEqu
	}
	if a.Type == vo.String {
		return Like
	}
	return Equal
}

func renderAll(syn Syntax, a vo.Attribute, ops Ops) (Fragment, error) {
	if len(ops) == 0 {
		return Fragment{}, fmt.Errorf("%w: %s: empty operator map", ErrUnsupported, a.Name)
	}
	return joinConds(syn, a, ops, " AND ")
}

func joinConds(syn Syntax, a vo.Attribute, conds []Cond, sep string) (Fragment, error) {
	parts := make([]string, 0, len(conds))
	var params []Param
	for _, c := range conds {
		f, err := renderCond(syn, a, c)
		if err != nil {
			return Fragment{}, err
		}
		parts = append(parts, f.SQL)
		params = append(params, f.Params...)
	}
	return Fragment{SQL: strings.Join(parts, sep), Params: params}, nil
}

func renderCond(syn Syntax, a vo.Attribute, c Cond) (Fragment, error) {
	if !c.Op.valid() {
		return Fragment{}, fmt.Errorf("%w: %s: %v", ErrUnsupported, a.Name, c.Op)
	}
	return rules[c.Op](syn, a, c.Value)
}

func valueRule(op Operator) rule {
	return func(syn Syntax, a vo.Attribute, v any) (Fragment, error) {
		if v == nil {
			return Fragment{}, fmt.Errorf("%w: %s: nil value for %v, use IS_NULL", ErrUnsupported, a.Name, op)
		}
		f, err := resolve(a.Search, op)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{
			SQL:    f.sql(syn, a.ColumnName()),
			Params: []Param{{Value: v, Scalar: a.Type, Search: a.Search, Op: op}},
		}, nil
	}
}

func isNullRule(_ Syntax, a vo.Attribute, _ any) (Fragment, error) {
	return Fragment{SQL: a.ColumnName() + " IS NULL"}, nil
}

func functRule(op Operator, format string) rule {
	return func(_ Syntax, a vo.Attribute, v any) (Fragment, error) {
		fn, err := functOf(v)
		if err != nil {
			return Fragment{}, fmt.Errorf("%s: %w", a.Name, err)
		}
		return Fragment{
			SQL:    fmt.Sprintf(format, a.ColumnName(), fn.Name),
			Params: []Param{{Value: fn, Scalar: a.Type, Search: a.Search, Op: op}},
		}, nil
	}
}

func orRule(syn Syntax, a vo.Attribute, v any) (Fragment, error) {
	nested, ok := v.(Ops)
	if !ok || len(nested) == 0 {
		return Fragment{}, fmt.Errorf("%w: %s: OR needs a non-empty operator map, got %T", ErrUnsupported, a.Name, v)
	}
	f, err := joinConds(syn, a, nested, " OR ")
	if err != nil {
		return Fragment{}, err
	}
	f.SQL = "(" + f.SQL + ")"
	return f, nil
}

type columnKind int

const (
	columnPlain columnKind = iota
	columnUpper
	columnDate
)

type pattern int

const (
	patternNone pattern = iota
	patternPrefix
	patternFull
)

// form is the single rendering decision shared by Render and Set.
type form struct {
	column columnKind
	gran   Granularity
	cmp    string
	pat    pattern
	escape bool
}

var comparators = map[Operator]string{
	Equal:      "=",
	Diff:       "!=",
	Bigger:     ">",
	BiggerEqu:  ">=",
	Smaller:    "<",
	SmallerEqu: "<=",
}

func granularityOf(at vo.AttributeType) Granularity {
	switch at {
	case vo.SearchMonthEqu:
		return Month
	case vo.SearchYearEqu:
		return Year
	}
	return Day
}

// resolve decides how an operator renders on an attribute with the given
// default search behaviour. The attribute's upper-casing or date truncation
// survives an explicit comparison; an explicit LIKE keeps only upper-casing.
func resolve(at vo.AttributeType, op Operator) (form, error) {
	switch op {
	case Equal, Diff, Bigger, BiggerEqu, Smaller, SmallerEqu:
		f := form{cmp: comparators[op]}
		switch {
		case at.IsUpper():
			f.column = columnUpper
		case at.IsDate():
			f.column, f.gran = columnDate, granularityOf(at)
		}
		return f, nil
	case Like:
		if at.IsUpper() {
			return resolve(at, UpperLike)
		}
		return form{cmp: "LIKE", pat: patternPrefix}, nil
	case FullLike:
		if at.IsUpper() {
			return resolve(at, UpperFullLike)
		}
		return form{cmp: "LIKE", pat: patternFull}, nil
	case Upper:
		return form{column: columnUpper, cmp: "="}, nil
	case UpperLike:
		return form{column: columnUpper, cmp: "LIKE", pat: patternPrefix, escape: true}, nil
	case UpperFullLike:
		// No escape clause here, unlike UpperLike.
		return form{column: columnUpper, cmp: "LIKE", pat: patternFull}, nil
	case DayEqu:
		return form{column: columnDate, gran: Day, cmp: "="}, nil
	case MonthEqu:
		return form{column: columnDate, gran: Month, cmp: "="}, nil
	case YearEqu:
		return form{column: columnDate, gran: Year, cmp: "="}, nil
	}
	return form{}, fmt.Errorf("%w: %v does not bind a compared value", ErrUnsupported, op)
}

func (f form) sql(syn Syntax, column string) string {
	switch f.column {
	case columnDate:
		return syn.DateExpr(column, f.gran) + f.cmp + "?"
	case columnUpper:
		s := "UPPER(" + column + ") " + f.cmp + " ?"
		if f.escape {
			s += " " + syn.LikeEscape()
		}
		return s
	}
	return column + " " + f.cmp + " ?"
}

// textual reports whether the bound value is a derived string rather than
// the attribute's native value.
func (f form) textual() bool {
	return f.column != columnPlain || f.pat != patternNone
}

// transform derives the bound string from the raw value.
func (f form) transform(v any) (string, error) {
	if f.column == columnDate {
		switch t := v.(type) {
		case time.Time:
			return t.Format(f.gran.Layout()), nil
		case string:
			return t, nil
		}
		return "", fmt.Errorf("%w: date truncation needs a time value, got %T", ErrUnsupported, v)
	}

	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case fmt.Stringer:
		s = x.String()
	default:
		if !vo.IsScalar(v) {
			return "", fmt.Errorf("%w: cannot match %T as text", ErrUnsupported, v)
		}
		s = fmt.Sprint(x)
	}

	if f.column == columnUpper {
		// Composed form, so a decomposed accent folds like the stored one.
		s = cases.Upper(language.Und).String(norm.NFC.String(s))
	}
	if hasWildcard(s) {
		return s, nil
	}
	switch f.pat {
	case patternPrefix:
		s += "%"
	case patternFull:
		s = "%" + s + "%"
	}
	return s, nil
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "%_")
}
