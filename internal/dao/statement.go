package dao

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/dialect"
	"github.com/roach88/recsql/internal/params"
	"github.com/roach88/recsql/internal/vo"
)

// Statement is a rendered statement with its positional arguments, ready
// for the driver.
type Statement struct {
	SQL  string
	Args []any
}

// filter accumulates WHERE conditions and their binds in order.
type filter struct {
	conds []string
	binds []clause.Param
}

func (f *filter) add(cond string, binds ...clause.Param) {
	f.conds = append(f.conds, cond)
	f.binds = append(f.binds, binds...)
}

// raw adds an opaque boolean expression; "" adds nothing.
func (f *filter) raw(expr string) {
	if expr = strings.TrimSpace(expr); expr != "" {
		f.conds = append(f.conds, "("+expr+")")
	}
}

func (f *filter) sql() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// exact binds v as-is with the attribute's declared type.
func exact(a vo.Attribute, v any) clause.Param {
	return clause.Param{Value: v, Scalar: a.Type, Search: vo.SearchEqual, Op: clause.Equal}
}

func (e *Engine) attribute(name string) (vo.Attribute, error) {
	a, ok := e.schema.Lookup(name)
	if !ok {
		return vo.Attribute{}, fmt.Errorf("%s.%s: %w", e.schema.Entity, name, vo.ErrUnknownAttribute)
	}
	return a, nil
}

// criteria renders every non-nil criterion of the record, in schema order.
func (e *Engine) criteria(f *filter, criteria *vo.Record) error {
	if criteria == nil {
		return nil
	}
	if criteria.Schema().Entity != e.schema.Entity {
		return fmt.Errorf("criteria for %s given to %s engine", criteria.Schema().Entity, e.schema.Entity)
	}
	for _, name := range criteria.Names() {
		v, _ := criteria.Get(name)
		if v == nil {
			continue
		}
		a, err := e.attribute(name)
		if err != nil {
			return err
		}
		frag, err := clause.Render(e.dialect, a, v)
		if err != nil {
			return err
		}
		f.add(frag.SQL, frag.Params...)
	}
	return nil
}

func (e *Engine) from(p *params.Params) (string, error) {
	tables, err := p.Strings(params.TableNames)
	if err != nil {
		return "", err
	}
	base := e.schema.Table
	if len(tables) > 0 {
		base = strings.Join(tables, ", ")
	}
	joins, err := p.JoinList()
	if err != nil {
		return "", err
	}
	all := append(append([]vo.Join(nil), e.schema.Joins...), joins...)
	return e.dialect.RenderJoin(base, all), nil
}

func (e *Engine) projection(p *params.Params) ([]string, []vo.Attribute, error) {
	names, err := p.Strings(params.Attributes)
	if err != nil {
		return nil, nil, err
	}
	if len(names) == 0 {
		names = e.schema.Names()
	}
	cols := make([]string, 0, len(names))
	attrs := make([]vo.Attribute, 0, len(names))
	for _, name := range names {
		a, err := e.attribute(name)
		if err != nil {
			return nil, nil, err
		}
		col := a.ColumnName()
		if col != a.Name {
			col += " AS " + a.Name
		}
		cols = append(cols, col)
		attrs = append(attrs, a)
	}
	return cols, attrs, nil
}

func (e *Engine) groupBy(p *params.Params) ([]string, error) {
	names, err := p.Strings(params.GroupBy)
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(names))
	for _, name := range names {
		a, err := e.attribute(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, a.ColumnName())
	}
	return cols, nil
}

// orderBy returns the ORDER BY items. Without GROUP BY the identity column
// closes the list so the row order is total.
func (e *Engine) orderBy(p *params.Params, projected []vo.Attribute, grouped bool) ([]string, error) {
	o, err := p.Orientation()
	if err != nil {
		return nil, err
	}
	if o == params.Permute {
		return nil, fmt.Errorf("%w: PERMUTE must be resolved by a SortHandler before the query", params.ErrInvalid)
	}
	dir := " ASC"
	if o == params.Descending {
		dir = " DESC"
	}

	names, err := p.Strings(params.SortFields)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		key, err := p.String(params.SortKey)
		if err != nil {
			return nil, err
		}
		if key != "" {
			names = []string{key}
		}
	}
	if len(names) == 0 {
		idx, ok, err := p.Int(params.SortIndex)
		if err != nil {
			return nil, err
		}
		if ok {
			if idx < 1 || idx > len(projected) {
				return nil, fmt.Errorf("%w: %s %d outside projection of %d", params.ErrInvalid, params.SortIndex, idx, len(projected))
			}
			names = []string{projected[idx-1].Name}
		}
	}

	identity := e.schema.IdentityAttribute()
	items := make([]string, 0, len(names)+1)
	sawIdentity := false
	for _, name := range names {
		a, err := e.attribute(name)
		if err != nil {
			return nil, err
		}
		sawIdentity = sawIdentity || a.Name == identity.Name
		items = append(items, a.ColumnName()+dir)
	}
	if !grouped && !sawIdentity {
		items = append(items, identity.ColumnName()+" ASC")
	}
	return items, nil
}

func (e *Engine) restrict(f *filter, p *params.Params, security string) error {
	additional, err := p.String(params.AdditionalStatement)
	if err != nil {
		return err
	}
	f.raw(additional)
	f.raw(security)
	return nil
}

// finish binds the parameters and rewrites placeholders for the driver.
func (e *Engine) finish(query string, binds []clause.Param) (Statement, error) {
	args := clause.NewArgs(len(binds))
	if _, err := clause.BindAll(args, 1, binds); err != nil {
		return Statement{}, err
	}
	values, err := args.Values()
	if err != nil {
		return Statement{}, err
	}
	for i, v := range values {
		if t, ok := v.(time.Time); ok {
			values[i] = e.dialect.BindTime(t, binds[i].Scalar)
		}
	}
	return Statement{SQL: e.dialect.Rebind(query), Args: values}, nil
}

// selectStatement assembles SELECT ... FROM ... WHERE criteria AND
// (additional) AND (security) GROUP BY ... ORDER BY ..., sliced.
func (e *Engine) selectStatement(f *filter, p *params.Params, security string) (Statement, error) {
	if err := e.restrict(f, p, security); err != nil {
		return Statement{}, err
	}

	from, err := e.from(p)
	if err != nil {
		return Statement{}, err
	}
	cols, attrs, err := e.projection(p)
	if err != nil {
		return Statement{}, err
	}
	group, err := e.groupBy(p)
	if err != nil {
		return Statement{}, err
	}
	order, err := e.orderBy(p, attrs, len(group) > 0)
	if err != nil {
		return Statement{}, err
	}
	start, end, err := p.Window()
	if err != nil {
		return Statement{}, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(from)
	b.WriteString(f.sql())
	if len(group) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(group, ", "))
	}
	if len(order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}
	query := e.dialect.RenderSlice(b.String(), dialect.Slice{Start: start, End: end})
	return e.finish(query, f.binds)
}

func (e *Engine) countStatement(f *filter, p *params.Params, security string) (Statement, error) {
	if err := e.restrict(f, p, security); err != nil {
		return Statement{}, err
	}
	from, err := e.from(p)
	if err != nil {
		return Statement{}, err
	}
	return e.finish("SELECT COUNT(*) FROM "+from+f.sql(), f.binds)
}

// writeColumn returns the bare column written by INSERT/UPDATE. Columns
// qualified with another table than the entity's are read-only.
func (e *Engine) writeColumn(a vo.Attribute) (string, bool) {
	col := a.ColumnName()
	i := strings.LastIndexByte(col, '.')
	if i < 0 {
		return col, true
	}
	prefix := col[:i]
	for _, name := range strings.Fields(e.schema.Table) {
		if strings.EqualFold(prefix, name) {
			return col[i+1:], true
		}
	}
	return "", false
}
