package dao

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsql/internal/authz"
	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/outcome"
	"github.com/roach88/recsql/internal/params"
	"github.com/roach88/recsql/internal/store"
	"github.com/roach88/recsql/internal/testutil"
	"github.com/roach88/recsql/internal/vo"
)

func openPeople(t *testing.T, opts ...Option) (*store.Store, *Engine) {
	t.Helper()
	s := testutil.OpenDemo(t)
	testutil.SeedPeople(t, s)
	return s, newEngine(t, testutil.PersonSchema(), s.Dialect(), opts...)
}

func ids(t *testing.T, out outcome.Outcome) []any {
	t.Helper()
	require.True(t, out.OK(), "status %v", out.Status())
	var got []any
	for _, rec := range out.Records() {
		got = append(got, rec.ID())
	}
	return got
}

func TestSQLite_GetList(t *testing.T) {
	s, e := openPeople(t)
	ctx := context.Background()
	schema := e.Schema()

	tests := []struct {
		name     string
		criteria *vo.Record
		want     []any
	}{
		{"no criteria", nil, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}},
		{"prefix like", vo.NewRecord(schema).MustSet("name", "to"), []any{int64(4), int64(5)}},
		{"upper like", vo.NewRecord(schema).MustSet("email", "CAROL"), []any{int64(3)}},
		{"day equality", vo.NewRecord(schema).MustSet("born", christmas), []any{int64(2)}},
		{"boolean", vo.NewRecord(schema).MustSet("active", false), []any{int64(3)}},
		{
			"or group",
			vo.NewRecord(schema).MustSet("born", clause.OrGroup(clause.C(clause.IsNull, nil), clause.C(clause.BiggerEqu, christmas))),
			[]any{int64(2), int64(4)},
		},
		{
			"range",
			vo.NewRecord(schema).MustSet("score", clause.Ops{clause.C(clause.BiggerEqu, 8), clause.C(clause.Smaller, 15)}),
			[]any{int64(1), int64(2)},
		},
		{"nil criterion filters nothing", vo.NewRecord(schema).MustSet("owner", nil), []any{int64(1), int64(2), int64(3), int64(4), int64(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.GetList(ctx, s.DB(), alice, tt.criteria, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(t, out))
		})
	}
}

func TestSQLite_GetListIsRepeatable(t *testing.T) {
	s, e := openPeople(t)
	ctx := context.Background()
	criteria := vo.NewRecord(e.Schema()).MustSet("name", "to")

	first, err := e.GetList(ctx, s.DB(), alice, criteria, nil)
	require.NoError(t, err)
	second, err := e.GetList(ctx, s.DB(), alice, criteria, nil)
	require.NoError(t, err)

	require.Len(t, second.Records(), len(first.Records()))
	for i, rec := range first.Records() {
		assert.True(t, rec.Equal(second.Records()[i]), "row %d differs", i)
	}
}

func TestSQLite_Pagination(t *testing.T) {
	s, e := openPeople(t)
	ctx := context.Background()

	p := params.New().
		Set(params.SortKey, "name").
		Set(params.RownumStart, 2).
		Set(params.RownumEnd, 3)
	out, err := e.GetList(ctx, s.DB(), alice, nil, p)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(3)}, ids(t, out))

	p = params.New().
		Set(params.SortKey, "name").
		Set(params.SortOrientation, params.Descending).
		Set(params.RownumStart, 4)
	out, err = e.GetList(ctx, s.DB(), alice, nil, p)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(1)}, ids(t, out))
}

func TestSQLite_Projection(t *testing.T) {
	s, e := openPeople(t)

	p := params.New().Set(params.Attributes, []string{"id", "name"})
	out, err := e.GetList(context.Background(), s.DB(), alice, vo.NewRecord(e.Schema()).MustSet("id", 1), p)
	require.NoError(t, err)
	require.Len(t, out.Records(), 1)

	rec := out.Records()[0]
	assert.ElementsMatch(t, []string{"id", "name"}, rec.Names())
	name, _ := rec.Get("name")
	assert.Equal(t, "Alice Martin", name)
}

func TestSQLite_Count(t *testing.T) {
	ctx := context.Background()

	s, e := openPeople(t)
	n, err := e.Count(ctx, s.DB(), alice, vo.NewRecord(e.Schema()).MustSet("name", "to"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, owned := openPeople(t, WithAuthorizer(ownerFilter))
	n, err = owned.Count(ctx, s.DB(), alice, vo.NewRecord(e.Schema()).MustSet("name", "to"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLite_GetRecord(t *testing.T) {
	s, e := openPeople(t)
	ctx := context.Background()

	out, err := e.GetRecord(ctx, s.DB(), alice, 4)
	require.NoError(t, err)
	require.True(t, out.OK())
	rec := out.Record()
	assert.Equal(t, int64(4), rec.ID())
	assert.Equal(t, int64(1), rec.Version())
	score, ok := rec.Get("score")
	assert.True(t, ok)
	assert.Nil(t, score)

	out, err = e.GetRecord(ctx, s.DB(), alice, 99)
	require.NoError(t, err)
	assert.Equal(t, outcome.NotFound, out.Status())
}

func TestSQLite_UpdateLifecycle(t *testing.T) {
	s, e := openPeople(t)
	ctx := context.Background()

	out, err := e.Update(ctx, s.DB(), alice, map[string]any{"name": "Robert Dupont"}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, outcome.OK, out.Status())
	assert.Equal(t, int64(1), out.Count())

	got, err := e.GetRecord(ctx, s.DB(), alice, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Record().Version())
	name, _ := got.Record().Get("name")
	assert.Equal(t, "Robert Dupont", name)

	// A second writer still holding version 1 loses.
	out, err = e.Update(ctx, s.DB(), alice, map[string]any{"name": "Bobby"}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, outcome.ChangedTimestamp, out.Status())

	out, err = e.Update(ctx, s.DB(), alice, map[string]any{"name": "Bobby"}, 99, 1)
	require.NoError(t, err)
	assert.Equal(t, outcome.NotFound, out.Status())
}

func TestSQLite_UpdateOutOfSight(t *testing.T) {
	az := authz.Static{Filters: map[authz.Mode]map[string]string{
		authz.Write: {"Person": "owner = :user"},
		authz.Read:  {"Person": "active = 1"},
	}}
	s, e := openPeople(t, WithAuthorizer(az))
	ctx := context.Background()

	// Bob's row is not writable by alice.
	out, err := e.Update(ctx, s.DB(), alice, map[string]any{"name": "x"}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, outcome.NotFound, out.Status())

	// Carol is alice's but inactive: the write lands, the re-read sees nothing.
	out, err = e.Update(ctx, s.DB(), alice, map[string]any{"score": 16.0}, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, outcome.NoRights, out.Status())
	assert.Equal(t, int64(1), out.Count())
}

// TIMESTAMP versions are written by strftime and must match the guard bind.
func TestSQLite_UpdateTimestampVersion(t *testing.T) {
	s := testutil.OpenDemo(t)
	testutil.SeedPeople(t, s)
	ctx := context.Background()
	_, err := s.DB().Exec(`INSERT INTO address (id, person_id, city, updated) VALUES ('addr-1', 1, 'Paris', '2020-03-04 05:06:07.000')`)
	require.NoError(t, err)
	e := newEngine(t, testutil.AddressSchema(), s.Dialect())

	got, err := e.GetRecord(ctx, s.DB(), alice, "addr-1")
	require.NoError(t, err)
	require.True(t, got.OK())
	seeded := got.Record().Version()
	require.IsType(t, time.Time{}, seeded)

	out, err := e.Update(ctx, s.DB(), alice, map[string]any{"city": "Lyon"}, "addr-1", seeded)
	require.NoError(t, err)
	assert.Equal(t, outcome.OK, out.Status())
	assert.Equal(t, int64(1), out.Count())

	out, err = e.Update(ctx, s.DB(), alice, map[string]any{"city": "Nice"}, "addr-1", seeded)
	require.NoError(t, err)
	assert.Equal(t, outcome.ChangedTimestamp, out.Status())

	// The bumped version read back guards the next write.
	got, err = e.GetRecord(ctx, s.DB(), alice, "addr-1")
	require.NoError(t, err)
	city, _ := got.Record().Get("city")
	assert.Equal(t, "Lyon", city)
	out, err = e.Update(ctx, s.DB(), alice, map[string]any{"city": "Nice"}, "addr-1", got.Record().Version())
	require.NoError(t, err)
	assert.Equal(t, outcome.OK, out.Status())

	// A created row is updatable and deletable with the version it was given.
	created, err := e.Create(ctx, s.DB(), alice, vo.NewRecord(e.Schema()).MustSet("personId", 2).MustSet("city", "Brest"))
	require.NoError(t, err)
	require.True(t, created.OK())
	got, err = e.GetRecord(ctx, s.DB(), alice, created.ID())
	require.NoError(t, err)
	require.True(t, got.OK())
	out, err = e.Update(ctx, s.DB(), alice, map[string]any{"city": "Rennes"}, created.ID(), got.Record().Version())
	require.NoError(t, err)
	assert.Equal(t, outcome.OK, out.Status())

	got, err = e.GetRecord(ctx, s.DB(), alice, created.ID())
	require.NoError(t, err)
	out, err = e.Delete(ctx, s.DB(), alice, created.ID(), got.Record().Version())
	require.NoError(t, err)
	assert.Equal(t, outcome.OK, out.Status())
	assert.Equal(t, int64(1), out.Count())
}

// An explicit comparison on a DATE column binds the stored text form.
func TestSQLite_DateComparison(t *testing.T) {
	s := testutil.OpenDemo(t)
	testutil.SeedPeople(t, s)
	schema := testutil.PersonSchema()
	for i := range schema.Attributes {
		if schema.Attributes[i].Name == "born" {
			schema.Attributes[i].Search = vo.SearchDefault
		}
	}
	e := newEngine(t, schema, s.Dialect())
	first := time.Date(2007, 12, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ops  clause.Ops
		want []any
	}{
		{"equal", clause.Ops{clause.C(clause.Equal, christmas)}, []any{int64(2)}},
		{"bigger", clause.Ops{clause.C(clause.Bigger, first)}, []any{int64(2)}},
		{"smaller or equal", clause.Ops{clause.C(clause.SmallerEqu, christmas)}, []any{int64(1), int64(2), int64(3), int64(5)}},
		{"different", clause.Ops{clause.C(clause.Diff, christmas)}, []any{int64(1), int64(3), int64(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.GetList(context.Background(), s.DB(), alice, vo.NewRecord(schema).MustSet("born", tt.ops), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(t, out))
		})
	}
}

func TestSQLite_CreateAndDelete(t *testing.T) {
	s, e := openPeople(t)
	ctx := context.Background()

	rec := vo.NewRecord(e.Schema()).
		MustSet("name", "Dana Petit").
		MustSet("email", "dana@example.com").
		MustSet("owner", "alice")
	out, err := e.Create(ctx, s.DB(), alice, rec)
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Equal(t, int64(6), out.ID())

	got, err := e.GetRecord(ctx, s.DB(), alice, out.ID())
	require.NoError(t, err)
	require.True(t, got.OK())
	assert.Equal(t, int64(1), got.Record().Version())
	active, _ := got.Record().Get("active")
	assert.Equal(t, true, active)

	out, err = e.Delete(ctx, s.DB(), alice, 6, 2)
	require.NoError(t, err)
	assert.Equal(t, outcome.ChangedTimestamp, out.Status())

	out, err = e.Delete(ctx, s.DB(), alice, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, outcome.OK, out.Status())

	out, err = e.GetRecord(ctx, s.DB(), alice, 6)
	require.NoError(t, err)
	assert.Equal(t, outcome.NotFound, out.Status())
}

func TestSQLite_CreateDuplicate(t *testing.T) {
	s, e := openPeople(t)

	rec := vo.NewRecord(e.Schema()).MustSet("name", "Bob Again").MustSet("email", "bob@example.com")
	_, err := e.Create(context.Background(), s.DB(), alice, rec)
	require.Error(t, err)
	assert.True(t, IsDatabaseError(err))
	assert.True(t, IsConstraintError(err))
}

func TestSQLite_Transaction(t *testing.T) {
	s, e := openPeople(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	out, err := e.Update(ctx, tx, alice, map[string]any{"name": "Rolled Back"}, 1, 1)
	require.NoError(t, err)
	require.Equal(t, outcome.OK, out.Status())
	require.NoError(t, tx.Close())

	got, err := e.GetRecord(ctx, s.DB(), alice, 1)
	require.NoError(t, err)
	name, _ := got.Record().Get("name")
	assert.Equal(t, "Alice Martin", name)
	assert.Equal(t, int64(1), got.Record().Version())

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := e.Update(ctx, tx, alice, map[string]any{"name": "Committed"}, 1, 1)
		return err
	})
	require.NoError(t, err)
	got, err = e.GetRecord(ctx, s.DB(), alice, 1)
	require.NoError(t, err)
	name, _ = got.Record().Get("name")
	assert.Equal(t, "Committed", name)
}

func TestSQLite_JoinedList(t *testing.T) {
	s := testutil.OpenDemo(t)
	testutil.SeedPeople(t, s)
	clock := testutil.NewDeterministicClock(time.Minute)
	for _, row := range [][]any{
		{"addr-1", 1, "Paris"},
		{"addr-2", 2, "Lyon"},
		{"addr-3", 3, "paris"},
	} {
		row = append(row, clock.Next().Format("2006-01-02 15:04:05"))
		_, err := s.DB().Exec(`INSERT INTO address (id, person_id, city, updated) VALUES (?, ?, ?, ?)`, row...)
		require.NoError(t, err)
	}
	e := newEngine(t, testutil.AddressSchema(), s.Dialect())

	out, err := e.GetList(context.Background(), s.DB(), alice, vo.NewRecord(e.Schema()).MustSet("city", "paris"), nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"addr-1", "addr-3"}, ids(t, out))

	var names []any
	for _, rec := range out.Records() {
		v, _ := rec.Get("personName")
		names = append(names, v)
	}
	assert.Equal(t, []any{"Alice Martin", "Carol Durand"}, names)

	first, _ := out.Records()[0].Get("updated")
	third, _ := out.Records()[1].Get("updated")
	assert.True(t, testutil.Epoch.Equal(first.(time.Time)))
	assert.True(t, testutil.Epoch.Add(2*time.Minute).Equal(third.(time.Time)))
}
