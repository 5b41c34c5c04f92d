package dao

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/recsql/internal/authz"
	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/outcome"
	"github.com/roach88/recsql/internal/vo"
)

// assignment is one column written by INSERT or UPDATE.
type assignment struct {
	attr   vo.Attribute
	column string
	value  any
}

// writable keeps the changes the user may write, in schema order. Identity
// and version are never assigned by the caller; columns of joined tables
// and fields the authorizer denies are dropped.
func (e *Engine) writable(ctx context.Context, user authz.User, changes map[string]any) ([]assignment, error) {
	for name := range changes {
		if _, err := e.attribute(name); err != nil {
			return nil, err
		}
	}
	var out []assignment
	for _, a := range e.schema.Attributes {
		v, ok := changes[a.Name]
		if !ok || a.Name == e.schema.Identity || a.Name == e.schema.Version {
			continue
		}
		col, ok := e.writeColumn(a)
		if !ok {
			continue
		}
		_, write, err := e.authz.FieldAccess(ctx, user, e.schema.Entity, a.Name)
		if err != nil {
			return nil, fmt.Errorf("field access %s: %w", a.Name, err)
		}
		if !write {
			e.logger.Debug("field not writable", "entity", e.schema.Entity, "field", a.Name, "user", user.Name)
			continue
		}
		if !vo.IsScalar(v) {
			return nil, fmt.Errorf("%s.%s: %w: %T is a criterion, not a value", e.schema.Entity, a.Name, vo.ErrTypeMismatch, v)
		}
		coerced, err := vo.Coerce(a.Type, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", e.schema.Entity, a.Name, err)
		}
		out = append(out, assignment{attr: a, column: col, value: coerced})
	}
	return out, nil
}

// versionGuard adds the optimistic-concurrency condition on the expected
// version. It reports false when the stored version already differs.
func (e *Engine) versionGuard(f *filter, current *vo.Record, expected any) (bool, error) {
	ver, ok := e.schema.VersionAttribute()
	if !ok {
		return true, nil
	}
	want, err := vo.Coerce(ver.Type, expected)
	if err != nil {
		return false, fmt.Errorf("expected version: %w", err)
	}
	if !vo.Equal(want, current.Version()) {
		return false, nil
	}
	col, _ := e.writeColumn(ver)
	if want == nil {
		f.add(col + " IS NULL")
	} else {
		f.add(col+" = ?", exact(ver, want))
	}
	return true, nil
}

// bump is the SET expression advancing the version.
func (e *Engine) bump(ver vo.Attribute) string {
	col, _ := e.writeColumn(ver)
	if ver.Type.IsTemporal() {
		return col + " = " + e.dialect.NowExpression()
	}
	return col + " = " + col + " + 1"
}

func (e *Engine) table() string {
	return strings.Fields(e.schema.Table)[0]
}

// Update writes the changed attributes of the record with the given
// identity if its stored version still equals expected.
//
// The current row is re-read under the write security clause first: absent
// is NOT_FOUND, a different version is CHANGED_TIMESTAMP and nothing is
// written. The UPDATE itself is guarded by identity and version, so a
// writer slipping in between also yields CHANGED_TIMESTAMP. After the write
// the row is read again under the read clause; if the user can no longer
// see it the outcome is NO_RIGHTS, carrying the row count.
func (e *Engine) Update(ctx context.Context, q Querier, user authz.User, changes map[string]any, id, expected any) (outcome.Outcome, error) {
	const op = "update"
	if id == nil {
		e.logOutcome(op, outcome.NothingTodo, id)
		return outcome.Of(outcome.NothingTodo), nil
	}
	set, err := e.writable(ctx, user, changes)
	if err != nil {
		return outcome.Outcome{}, e.programming(op, err)
	}
	if len(set) == 0 {
		e.logOutcome(op, outcome.NothingTodo, id)
		return outcome.Of(outcome.NothingTodo), nil
	}

	current, guard, status, err := e.lockstep(ctx, q, op, user, id, expected)
	if err != nil || status != outcome.OK {
		return outcome.Of(status), err
	}

	items := make([]string, 0, len(set)+1)
	binds := make([]clause.Param, 0, len(set)+len(guard.binds))
	for _, s := range set {
		items = append(items, s.column+" = ?")
		binds = append(binds, exact(s.attr, s.value))
	}
	if ver, ok := e.schema.VersionAttribute(); ok {
		items = append(items, e.bump(ver))
	}
	binds = append(binds, guard.binds...)

	query := "UPDATE " + e.table() + " SET " + strings.Join(items, ", ") + guard.sql()
	n, err := e.exec(ctx, q, op, query, binds)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if n == 0 {
		e.logOutcome(op, outcome.ChangedTimestamp, id)
		return outcome.Of(outcome.ChangedTimestamp), nil
	}

	sec, err := e.securityClause(ctx, user, authz.Read)
	if err != nil {
		return outcome.Outcome{}, e.programming(op, err)
	}
	after, err := e.selectByID(ctx, q, op, current.ID(), sec)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if after == nil {
		e.logOutcome(op, outcome.NoRights, id)
		return outcome.WithCount(outcome.NoRights, n), nil
	}
	return outcome.WithCount(outcome.OK, n), nil
}

// Delete removes the record with the given identity if its stored version
// still equals expected. Outcomes mirror Update.
func (e *Engine) Delete(ctx context.Context, q Querier, user authz.User, id, expected any) (outcome.Outcome, error) {
	const op = "delete"
	if id == nil {
		e.logOutcome(op, outcome.NothingTodo, id)
		return outcome.Of(outcome.NothingTodo), nil
	}
	_, guard, status, err := e.lockstep(ctx, q, op, user, id, expected)
	if err != nil || status != outcome.OK {
		return outcome.Of(status), err
	}
	n, err := e.exec(ctx, q, op, "DELETE FROM "+e.table()+guard.sql(), guard.binds)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if n == 0 {
		e.logOutcome(op, outcome.ChangedTimestamp, id)
		return outcome.Of(outcome.ChangedTimestamp), nil
	}
	return outcome.WithCount(outcome.OK, n), nil
}

// lockstep re-reads the current row under the write security clause and
// builds the identity + version guard. A non-OK status means the write
// must not happen.
func (e *Engine) lockstep(ctx context.Context, q Querier, op string, user authz.User, id, expected any) (*vo.Record, *filter, outcome.Status, error) {
	sec, err := e.securityClause(ctx, user, authz.Write)
	if err != nil {
		return nil, nil, outcome.Error, e.programming(op, err)
	}
	current, err := e.selectByID(ctx, q, op, id, sec)
	if err != nil {
		return nil, nil, outcome.Error, err
	}
	if current == nil {
		e.logOutcome(op, outcome.NotFound, id)
		return nil, nil, outcome.NotFound, nil
	}

	idAttr := e.schema.IdentityAttribute()
	idCol, _ := e.writeColumn(idAttr)
	guard := &filter{}
	guard.add(idCol+" = ?", exact(idAttr, current.ID()))
	fresh, err := e.versionGuard(guard, current, expected)
	if err != nil {
		return nil, nil, outcome.Error, e.programming(op, err)
	}
	if !fresh {
		e.logOutcome(op, outcome.ChangedTimestamp, id)
		return nil, nil, outcome.ChangedTimestamp, nil
	}
	guard.raw(sec)
	return current, guard, outcome.OK, nil
}

// Create inserts the record and returns its identity. A supplied identity
// is used as given; otherwise STRING identities are generated, numeric ones
// come from the schema's sequence when the dialect has sequences, and from
// auto-increment otherwise. A numeric version starts at 1, a temporal one
// at the database's current time.
func (e *Engine) Create(ctx context.Context, q Querier, user authz.User, rec *vo.Record) (outcome.Outcome, error) {
	const op = "create"
	if rec == nil {
		return outcome.Outcome{}, e.programming(op, fmt.Errorf("nil record"))
	}
	set, err := e.writable(ctx, user, rec.Map())
	if err != nil {
		return outcome.Outcome{}, e.programming(op, err)
	}
	if len(set) == 0 {
		e.logOutcome(op, outcome.NothingTodo, rec.ID())
		return outcome.Of(outcome.NothingTodo), nil
	}

	idAttr := e.schema.IdentityAttribute()
	idCol, _ := e.writeColumn(idAttr)
	var (
		cols  []string
		marks []string
		binds []clause.Param
	)

	id, err := vo.Coerce(idAttr.Type, rec.ID())
	if err != nil {
		return outcome.Outcome{}, e.programming(op, fmt.Errorf("identity: %w", err))
	}
	if id == nil {
		switch next := e.dialect.NextIDExpression(e.schema.Sequence); {
		case idAttr.Type == vo.String:
			id = e.ids.Generate()
		case e.schema.Sequence != "" && next != "":
			if id, err = e.nextID(ctx, q, op, idAttr, next); err != nil {
				return outcome.Outcome{}, err
			}
		}
	}
	if id != nil {
		cols = append(cols, idCol)
		marks = append(marks, "?")
		binds = append(binds, exact(idAttr, id))
	}

	for _, s := range set {
		cols = append(cols, s.column)
		marks = append(marks, "?")
		binds = append(binds, exact(s.attr, s.value))
	}
	if ver, ok := e.schema.VersionAttribute(); ok {
		col, _ := e.writeColumn(ver)
		cols = append(cols, col)
		if ver.Type.IsTemporal() {
			marks = append(marks, e.dialect.NowExpression())
		} else {
			marks = append(marks, "1")
		}
	}

	query := "INSERT INTO " + e.table() + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	if id != nil {
		if _, err := e.exec(ctx, q, op, query, binds); err != nil {
			return outcome.Outcome{}, err
		}
		return outcome.WithID(id), nil
	}

	if ret := e.dialect.InsertReturning(idCol); ret != "" {
		id, err = e.scalar(ctx, q, op, idAttr, query+ret, binds)
		if err != nil {
			return outcome.Outcome{}, err
		}
		return outcome.WithID(id), nil
	}

	st, err := e.finish(query, binds)
	if err != nil {
		return outcome.Outcome{}, e.programming(op, err)
	}
	e.logExec(op, st.SQL, len(st.Args))
	res, err := q.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return outcome.Outcome{}, e.database(op, err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return outcome.Outcome{}, e.database(op, fmt.Errorf("last insert id: %w", err))
	}
	if id, err = vo.Coerce(idAttr.Type, last); err != nil {
		return outcome.Outcome{}, e.programming(op, err)
	}
	return outcome.WithID(id), nil
}

func (e *Engine) nextID(ctx context.Context, q Querier, op string, idAttr vo.Attribute, next string) (any, error) {
	return e.scalar(ctx, q, op, idAttr, e.dialect.SelectExpression(next), nil)
}

// scalar runs a single-value query and coerces the value to a's type.
func (e *Engine) scalar(ctx context.Context, q Querier, op string, a vo.Attribute, query string, binds []clause.Param) (any, error) {
	st, err := e.finish(query, binds)
	if err != nil {
		return nil, e.programming(op, err)
	}
	e.logExec(op, st.SQL, len(st.Args))
	rows, err := q.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, e.database(op, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, e.database(op, err)
		}
		return nil, e.database(op, fmt.Errorf("%s returned no row", a.Name))
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return nil, e.database(op, fmt.Errorf("scan %s: %w", a.Name, err))
	}
	if err := rows.Err(); err != nil {
		return nil, e.database(op, err)
	}
	coerced, err := vo.Coerce(a.Type, v)
	if err != nil {
		return nil, e.programming(op, fmt.Errorf("%s: %w", a.Name, err))
	}
	return coerced, nil
}

// exec runs a write and returns the number of affected rows.
func (e *Engine) exec(ctx context.Context, q Querier, op, query string, binds []clause.Param) (int64, error) {
	st, err := e.finish(query, binds)
	if err != nil {
		return 0, e.programming(op, err)
	}
	e.logExec(op, st.SQL, len(st.Args))
	res, err := q.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, e.database(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, e.database(op, fmt.Errorf("rows affected: %w", err))
	}
	return n, nil
}
