package dao

import (
	"context"
	"fmt"

	"github.com/roach88/recsql/internal/authz"
	"github.com/roach88/recsql/internal/outcome"
	"github.com/roach88/recsql/internal/params"
	"github.com/roach88/recsql/internal/vo"
)

// RenderList renders the statement GetList would run, without running it.
func (e *Engine) RenderList(ctx context.Context, user authz.User, criteria *vo.Record, p *params.Params) (Statement, error) {
	const op = "list"
	sec, err := e.securityClause(ctx, user, authz.Read)
	if err != nil {
		return Statement{}, e.programming(op, err)
	}
	var f filter
	if err := e.criteria(&f, criteria); err != nil {
		return Statement{}, e.programming(op, err)
	}
	st, err := e.selectStatement(&f, p, sec)
	if err != nil {
		return Statement{}, e.programming(op, err)
	}
	return st, nil
}

// GetList returns the records matching criteria, shaped by p. A nil
// criteria record, or nil criteria values, filter nothing.
func (e *Engine) GetList(ctx context.Context, q Querier, user authz.User, criteria *vo.Record, p *params.Params) (outcome.Outcome, error) {
	st, err := e.RenderList(ctx, user, criteria, p)
	if err != nil {
		return outcome.Outcome{}, err
	}
	records, err := e.query(ctx, q, "list", st)
	if err != nil {
		return outcome.Outcome{}, err
	}
	return outcome.WithRecords(records), nil
}

// Count returns the number of rows matching criteria. Projection, sort
// and slice parameters are ignored.
func (e *Engine) Count(ctx context.Context, q Querier, user authz.User, criteria *vo.Record, p *params.Params) (int64, error) {
	const op = "count"
	sec, err := e.securityClause(ctx, user, authz.Read)
	if err != nil {
		return 0, e.programming(op, err)
	}
	var f filter
	if err := e.criteria(&f, criteria); err != nil {
		return 0, e.programming(op, err)
	}
	st, err := e.countStatement(&f, p, sec)
	if err != nil {
		return 0, e.programming(op, err)
	}

	e.logExec(op, st.SQL, len(st.Args))
	rows, err := q.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, e.database(op, err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, e.database(op, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, e.database(op, err)
	}
	return n, nil
}

// GetRecord returns the record with the given identity, visible under the
// user's read security clause. A nil id is NOTHING_TODO and runs nothing.
func (e *Engine) GetRecord(ctx context.Context, q Querier, user authz.User, id any) (outcome.Outcome, error) {
	const op = "get"
	if id == nil {
		e.logOutcome(op, outcome.NothingTodo, id)
		return outcome.Of(outcome.NothingTodo), nil
	}
	sec, err := e.securityClause(ctx, user, authz.Read)
	if err != nil {
		return outcome.Outcome{}, e.programming(op, err)
	}
	rec, err := e.selectByID(ctx, q, op, id, sec)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if rec == nil {
		e.logOutcome(op, outcome.NotFound, id)
		return outcome.Of(outcome.NotFound), nil
	}
	return outcome.WithRecord(rec), nil
}

// selectByID reads one record by identity under the given security clause.
// It returns nil when no row is visible.
func (e *Engine) selectByID(ctx context.Context, q Querier, op string, id any, security string) (*vo.Record, error) {
	idAttr := e.schema.IdentityAttribute()
	v, err := vo.Coerce(idAttr.Type, id)
	if err != nil {
		return nil, e.programming(op, fmt.Errorf("identity: %w", err))
	}
	var f filter
	f.add(idAttr.ColumnName()+" = ?", exact(idAttr, v))
	st, err := e.selectStatement(&f, nil, security)
	if err != nil {
		return nil, e.programming(op, err)
	}
	records, err := e.query(ctx, q, op, st)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// query runs a SELECT and hydrates each row into a record. Result columns
// are matched to attributes by label; unknown columns are skipped.
func (e *Engine) query(ctx context.Context, q Querier, op string, st Statement) ([]*vo.Record, error) {
	e.logExec(op, st.SQL, len(st.Args))
	rows, err := q.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, e.database(op, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, e.database(op, err)
	}
	attrs := make([]*vo.Attribute, len(cols))
	for i, col := range cols {
		if a, ok := e.schema.LookupColumn(col); ok {
			attrs[i] = &a
		}
	}

	records := []*vo.Record{}
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, e.database(op, fmt.Errorf("scan: %w", err))
		}
		rec := vo.NewRecord(e.schema)
		for i, a := range attrs {
			if a == nil {
				continue
			}
			if err := rec.Set(a.Name, dest[i]); err != nil {
				return nil, e.programming(op, fmt.Errorf("column %s: %w", cols[i], err))
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, e.database(op, fmt.Errorf("iterate: %w", err))
	}
	return records, nil
}
