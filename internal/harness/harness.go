package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/recsql/internal/authz"
	"github.com/roach88/recsql/internal/dao"
	"github.com/roach88/recsql/internal/outcome"
	"github.com/roach88/recsql/internal/params"
	"github.com/roach88/recsql/internal/store"
	"github.com/roach88/recsql/internal/testutil"
	"github.com/roach88/recsql/internal/vo"
)

// Harness runs the steps of one scenario.
type Harness struct {
	store   *store.Store
	schemas map[string]*vo.Schema
	engines map[string]*dao.Engine
	sorters map[string]*params.SortHandler
	authz   authz.Authorizer
	logger  *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithAuthorizer sets the authorizer of every engine (default AllowAll).
func WithAuthorizer(a authz.Authorizer) Option {
	return func(h *Harness) { h.authz = a }
}

// WithLogger sets the engine logger (default discards).
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario against the given entity schemas.
//
// Each run gets its own in-memory database. Step failures and assertion
// failures are reported in the result; the error is for a harness that
// could not run at all.
func Run(ctx context.Context, scenario *Scenario, schemas []*vo.Schema, opts ...Option) (*Result, error) {
	st, err := store.Open("sqlite3", ":memory:", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.ApplyDemoSchema(ctx); err != nil {
		return nil, err
	}
	for i, stmt := range scenario.Setup {
		if _, err := st.DB().ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	h := &Harness{
		store:   st,
		schemas: make(map[string]*vo.Schema, len(schemas)),
		engines: make(map[string]*dao.Engine),
		sorters: make(map[string]*params.SortHandler),
		authz:   authz.AllowAll{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, s := range schemas {
		h.schemas[s.Entity] = s
	}

	result := NewResult()
	for i := range scenario.Steps {
		event, out := h.execute(ctx, i+1, &scenario.Steps[i])
		result.Trace = append(result.Trace, event)
		if exp := scenario.Steps[i].Expect; exp != nil {
			for _, msg := range checkExpect(exp, event, out) {
				result.AddError(fmt.Sprintf("steps[%d] %s %s: %s", i, event.Op, event.Entity, msg))
			}
		}
	}

	for _, msg := range EvaluateAssertions(ctx, st, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) engine(entity string) (*dao.Engine, error) {
	if e, ok := h.engines[entity]; ok {
		return e, nil
	}
	schema, ok := h.schemas[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	e, err := dao.New(schema, h.store.Dialect(),
		dao.WithAuthorizer(h.authz),
		dao.WithLogger(h.logger),
		dao.WithIdentityGenerator(testutil.NewSequentialIDs(strings.ToLower(entity))),
	)
	if err != nil {
		return nil, err
	}
	h.engines[entity] = e
	return e, nil
}

// sorter is the sort memory of one user on one entity, so PERMUTE flips
// between consecutive list steps.
func (h *Harness) sorter(user, entity string) *params.SortHandler {
	key := user + "/" + entity
	if sh, ok := h.sorters[key]; ok {
		return sh
	}
	sh := &params.SortHandler{}
	h.sorters[key] = sh
	return sh
}

// execute runs one step. Errors become an ERROR event, so scenarios can
// expect them.
func (h *Harness) execute(ctx context.Context, seq int, step *Step) (TraceEvent, outcome.Outcome) {
	req := step.req
	event := TraceEvent{Seq: seq, Op: step.Op, Entity: req.Entity, User: step.User}

	out, err := h.call(ctx, step)
	if err != nil {
		event.Status = outcome.Error.String()
		event.Error = err.Error()
		return event, outcome.Of(outcome.Error)
	}

	event.Status = out.Status().String()
	event.Count = out.Count()
	event.ID = out.ID()
	for _, rec := range out.Records() {
		event.IDs = append(event.IDs, rec.ID())
	}
	return event, out
}

func (h *Harness) call(ctx context.Context, step *Step) (outcome.Outcome, error) {
	req := step.req
	e, err := h.engine(req.Entity)
	if err != nil {
		return outcome.Outcome{}, err
	}
	user := authz.User{Name: step.User, Groups: step.Groups}
	db := h.store.DB()

	switch step.Op {
	case OpList, OpCount:
		criteria, err := req.CriteriaRecord(e.Schema())
		if err != nil {
			return outcome.Outcome{}, err
		}
		if step.Op == OpList {
			p := req.Params.Clone()
			if err := h.sorter(step.User, req.Entity).Resolve(p); err != nil {
				return outcome.Outcome{}, err
			}
			return e.GetList(ctx, db, user, criteria, p)
		}
		n, err := e.Count(ctx, db, user, criteria, req.Params)
		if err != nil {
			return outcome.Outcome{}, err
		}
		return outcome.WithCount(outcome.OK, n), nil
	case OpGet:
		return e.GetRecord(ctx, db, user, req.ID)
	case OpCreate:
		rec, err := req.ValuesRecord(e.Schema())
		if err != nil {
			return outcome.Outcome{}, err
		}
		return h.inTx(ctx, func(tx *store.Tx) (outcome.Outcome, error) {
			return e.Create(ctx, tx, user, rec)
		})
	case OpUpdate:
		return h.inTx(ctx, func(tx *store.Tx) (outcome.Outcome, error) {
			return e.Update(ctx, tx, user, req.Values, req.ID, req.Version)
		})
	case OpDelete:
		return h.inTx(ctx, func(tx *store.Tx) (outcome.Outcome, error) {
			return e.Delete(ctx, tx, user, req.ID, req.Version)
		})
	}
	return outcome.Outcome{}, fmt.Errorf("unknown op %q", step.Op)
}

// inTx commits only OK writes.
func (h *Harness) inTx(ctx context.Context, fn func(*store.Tx) (outcome.Outcome, error)) (outcome.Outcome, error) {
	tx, err := h.store.Begin(ctx)
	if err != nil {
		return outcome.Outcome{}, err
	}
	defer tx.Close()

	out, err := fn(tx)
	if err != nil || !out.OK() {
		return out, err
	}
	return out, tx.Commit()
}

func checkExpect(exp *Expect, event TraceEvent, out outcome.Outcome) []string {
	var msgs []string
	if exp.Status != event.Status {
		msg := fmt.Sprintf("expected status %s, got %s", exp.Status, event.Status)
		if event.Error != "" {
			msg += " (" + event.Error + ")"
		}
		return append(msgs, msg)
	}
	if exp.Count != nil && *exp.Count != event.Count {
		msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *exp.Count, event.Count))
	}
	if exp.ID != nil && !sameValue(exp.ID, event.ID) {
		msgs = append(msgs, fmt.Sprintf("expected id %v, got %v", exp.ID, event.ID))
	}
	if exp.IDs != nil {
		match := len(exp.IDs) == len(event.IDs)
		for i := 0; match && i < len(exp.IDs); i++ {
			match = sameValue(exp.IDs[i], event.IDs[i])
		}
		if !match {
			msgs = append(msgs, fmt.Sprintf("expected ids %v, got %v", exp.IDs, event.IDs))
		}
	}
	if exp.Record != nil {
		rec := out.Record()
		if rec == nil {
			return append(msgs, "expected a record, got none")
		}
		for _, msg := range matchSubset(exp.Record, rec.Map()) {
			msgs = append(msgs, "record: "+msg)
		}
	}
	return msgs
}
