// Package params implements the query-parameter protocol: an ordered list
// of named directives (projection, sort, slice, joins, ...) read by the
// data access engine.
package params

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/recsql/internal/vo"
)

// ErrInvalid is wrapped when a parameter has the wrong shape.
var ErrInvalid = errors.New("invalid query parameter")

// Name identifies a directive.
type Name string

const (
	TableNames          Name = "TABLE_NAMES"
	Attributes          Name = "ATTRIBUTES"
	SortFields          Name = "SORT_FIELDS"
	SortIndex           Name = "SORT_INDEX"
	SortKey             Name = "SORT_KEY"
	SortOrientation     Name = "SORT_ORIENTATION"
	RownumMax           Name = "ROWNUM_MAX"
	RownumStart         Name = "ROWNUM_START"
	RownumEnd           Name = "ROWNUM_END"
	ResultFormat        Name = "RESULT_FORMAT"
	ResultFields        Name = "RESULT_FIELDS"
	ResultLabelKeys     Name = "RESULT_LABEL_KEYS"
	ResultLang          Name = "RESULT_LANG"
	Joins               Name = "JOINS"
	GroupBy             Name = "GROUP_BY"
	AdditionalStatement Name = "ADDITIONAL_STATEMENT"
)

var known = map[Name]bool{
	TableNames: true, Attributes: true, SortFields: true, SortIndex: true, SortKey: true,
	SortOrientation: true, RownumMax: true, RownumStart: true, RownumEnd: true,
	ResultFormat: true, ResultFields: true, ResultLabelKeys: true, ResultLang: true,
	Joins: true, GroupBy: true, AdditionalStatement: true,
}

// ParseName validates a directive name.
func ParseName(s string) (Name, error) {
	n := Name(strings.ToUpper(strings.TrimSpace(s)))
	if !known[n] {
		return "", fmt.Errorf("%w: unknown name %q", ErrInvalid, s)
	}
	return n, nil
}

// Orientation is the sort direction.
type Orientation string

const (
	Ascending  Orientation = "ASCENDING"
	Descending Orientation = "DESCENDING"
	// Permute flips the orientation remembered by a SortHandler.
	Permute Orientation = "PERMUTE"
)

// ParseOrientation accepts the full names and ASC/DESC.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASCENDING", "ASC", "":
		return Ascending, nil
	case "DESCENDING", "DESC":
		return Descending, nil
	case "PERMUTE":
		return Permute, nil
	}
	return "", fmt.Errorf("%w: orientation %q", ErrInvalid, s)
}

// Param is one name/value directive.
type Param struct {
	Name  Name
	Value any
}

// Params is an ordered directive list. When a name repeats, the last
// value wins. The zero value is empty and ready to use.
type Params struct {
	list []Param
}

// New returns a list holding ps in order.
func New(ps ...Param) *Params {
	return &Params{list: append([]Param(nil), ps...)}
}

// Set appends a directive and returns p for chaining.
func (p *Params) Set(name Name, value any) *Params {
	p.list = append(p.list, Param{Name: name, Value: value})
	return p
}

// Get returns the last value set for name.
func (p *Params) Get(name Name) (any, bool) {
	if p == nil {
		return nil, false
	}
	for i := len(p.list) - 1; i >= 0; i-- {
		if p.list[i].Name == name {
			return p.list[i].Value, true
		}
	}
	return nil, false
}

// Has reports whether name was set.
func (p *Params) Has(name Name) bool {
	_, ok := p.Get(name)
	return ok
}

// All returns the directives in insertion order.
func (p *Params) All() []Param {
	if p == nil {
		return nil
	}
	return append([]Param(nil), p.list...)
}

// String returns a string directive; "" when absent.
func (p *Params) String(name Name) (string, error) {
	v, ok := p.Get(name)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s: want string, got %T", ErrInvalid, name, v)
	}
	return s, nil
}

// Strings returns a list directive. A single string is split on commas.
func (p *Params) Strings(name Name) ([]string, error) {
	v, ok := p.Get(name)
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...), nil
	case string:
		var out []string
		for _, s := range strings.Split(x, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s: want strings, got %T", ErrInvalid, name, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s: want string list, got %T", ErrInvalid, name, v)
}

// Int returns an integer directive and whether it was set.
func (p *Params) Int(name Name) (int, bool, error) {
	v, ok := p.Get(name)
	if !ok || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case int:
		return x, true, nil
	case int64:
		return int(x), true, nil
	case int32:
		return int(x), true, nil
	case uint64:
		if x > math.MaxInt32 {
			return 0, false, fmt.Errorf("%w: %s: %d out of range", ErrInvalid, name, x)
		}
		return int(x), true, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, false, fmt.Errorf("%w: %s: %v is not an integer", ErrInvalid, name, x)
		}
		return int(x), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s: %q is not an integer", ErrInvalid, name, x)
		}
		return n, true, nil
	}
	return 0, false, fmt.Errorf("%w: %s: want integer, got %T", ErrInvalid, name, v)
}

// JoinList returns the JOINS directive.
func (p *Params) JoinList() ([]vo.Join, error) {
	v, ok := p.Get(Joins)
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case []vo.Join:
		return append([]vo.Join(nil), x...), nil
	case vo.Join:
		return []vo.Join{x}, nil
	}
	return nil, fmt.Errorf("%w: %s: want joins, got %T", ErrInvalid, Joins, v)
}

// Orientation returns SORT_ORIENTATION, Ascending when absent.
func (p *Params) Orientation() (Orientation, error) {
	v, ok := p.Get(SortOrientation)
	if !ok || v == nil {
		return Ascending, nil
	}
	switch x := v.(type) {
	case Orientation:
		return ParseOrientation(string(x))
	case string:
		return ParseOrientation(x)
	}
	return "", fmt.Errorf("%w: %s: want orientation, got %T", ErrInvalid, SortOrientation, v)
}

// Window returns the 1-based inclusive row window; end == 0 means
// unbounded. ROWNUM_MAX caps the window size, 0 meaning unlimited.
func (p *Params) Window() (start, end int, err error) {
	start, hasStart, err := p.Int(RownumStart)
	if err != nil {
		return 0, 0, err
	}
	end, hasEnd, err := p.Int(RownumEnd)
	if err != nil {
		return 0, 0, err
	}
	limit, _, err := p.Int(RownumMax)
	if err != nil {
		return 0, 0, err
	}
	if start < 0 || end < 0 || limit < 0 {
		return 0, 0, fmt.Errorf("%w: negative row window", ErrInvalid)
	}
	if !hasStart || start == 0 {
		start = 1
	}
	if hasEnd && end > 0 && end < start {
		return 0, 0, fmt.Errorf("%w: row window end %d before start %d", ErrInvalid, end, start)
	}
	if limit > 0 {
		capEnd := start + limit - 1
		if end == 0 || end > capEnd {
			end = capEnd
		}
	}
	return start, end, nil
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	return New(p.All()...)
}
