package dialect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/vo"
)

const q = "SELECT id FROM person ORDER BY id ASC"

func TestRenderSlice(t *testing.T) {
	tests := []struct {
		name string
		d    Dialect
		s    Slice
		want string
	}{
		{"oracle all", Oracle{}, Slice{}, q},
		{"oracle first rows", Oracle{}, Slice{Start: 1, End: 10}, "SELECT * FROM (" + q + ") WHERE ROWNUM <= 10"},
		{"oracle window", Oracle{}, Slice{Start: 11, End: 20},
			"SELECT * FROM (SELECT q_.*, ROWNUM rnum_ FROM (" + q + ") q_ WHERE ROWNUM <= 20) WHERE rnum_ >= 11"},
		{"oracle open end", Oracle{}, Slice{Start: 5},
			"SELECT * FROM (SELECT q_.*, ROWNUM rnum_ FROM (" + q + ") q_) WHERE rnum_ >= 5"},
		{"postgres first rows", Postgres{}, Slice{Start: 1, End: 10}, q + " FETCH NEXT 10 ROWS ONLY"},
		{"postgres window", Postgres{}, Slice{Start: 11, End: 20}, q + " OFFSET 10 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"postgres open end", Postgres{}, Slice{Start: 5}, q + " OFFSET 4 ROWS"},
		{"mysql first rows", MySQL{}, Slice{End: 3}, q + " LIMIT 3"},
		{"mysql window", MySQL{}, Slice{Start: 2, End: 3}, q + " LIMIT 2 OFFSET 1"},
		{"mysql open end", MySQL{}, Slice{Start: 3}, q + " LIMIT 18446744073709551615 OFFSET 2"},
		{"sqlite all", SQLite{}, Slice{Start: 1}, q},
		{"sqlite window", SQLite{}, Slice{Start: 2, End: 3}, q + " LIMIT 2 OFFSET 1"},
		{"sqlite open end", SQLite{}, Slice{Start: 3}, q + " LIMIT -1 OFFSET 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.RenderSlice(q, tt.s))
		})
	}
}

func TestRenderJoin(t *testing.T) {
	joins := []vo.Join{
		{Table: "address a", On: "a.person_id = person.id"},
		{Table: "LEFT JOIN company c", On: "c.id = person.company_id"},
	}
	for _, d := range []Dialect{Oracle{}, Postgres{}, MySQL{}, SQLite{}} {
		assert.Equal(t,
			"person JOIN address a ON a.person_id = person.id LEFT JOIN company c ON c.id = person.company_id",
			d.RenderJoin("person", joins), d.Name())
		assert.Equal(t, "person", d.RenderJoin("person", nil))
	}
}

func TestRebind(t *testing.T) {
	const in = "SELECT a FROM t WHERE a = ? AND b LIKE '?%' AND c IN (?, ?)"
	assert.Equal(t, "SELECT a FROM t WHERE a = $1 AND b LIKE '?%' AND c IN ($2, $3)", Postgres{}.Rebind(in))
	assert.Equal(t, "SELECT a FROM t WHERE a = :1 AND b LIKE '?%' AND c IN (:2, :3)", Oracle{}.Rebind(in))
	assert.Equal(t, in, MySQL{}.Rebind(in))
	assert.Equal(t, in, SQLite{}.Rebind(in))

	assert.Equal(t, "x = 'it''s' AND y = $1", Postgres{}.Rebind("x = 'it''s' AND y = ?"))
}

func TestDateExpr(t *testing.T) {
	assert.Equal(t, "TO_CHAR(born,'yyyy.mm.dd')", Oracle{}.DateExpr("born", clause.Day))
	assert.Equal(t, "TO_CHAR(born,'yyyy.mm')", Postgres{}.DateExpr("born", clause.Month))
	assert.Equal(t, "DATE_FORMAT(born,'%Y')", MySQL{}.DateExpr("born", clause.Year))
	assert.Equal(t, "strftime('%Y.%m.%d',born)", SQLite{}.DateExpr("born", clause.Day))
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, "person_seq.NEXTVAL", Oracle{}.NextIDExpression("person_seq"))
	assert.Equal(t, "nextval('person_seq')", Postgres{}.NextIDExpression("person_seq"))
	assert.Empty(t, MySQL{}.NextIDExpression("person_seq"))
	assert.Empty(t, SQLite{}.NextIDExpression("person_seq"))
	assert.Empty(t, Oracle{}.NextIDExpression(""))

	assert.Equal(t, "SELECT SYSTIMESTAMP FROM DUAL", Oracle{}.SelectExpression(Oracle{}.NowExpression()))
	assert.Equal(t, " RETURNING id", Postgres{}.InsertReturning("id"))
	assert.Empty(t, MySQL{}.InsertReturning("id"))
}

func TestBindTime(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	at := time.Date(2026, 10, 17, 2, 2, 25, 790_000_000, paris)

	assert.Equal(t, "2026-10-17 01:02:25.790", SQLite{}.BindTime(at, vo.Timestamp))
	assert.Equal(t, "2026-10-17", SQLite{}.BindTime(at, vo.Date))
	// Whole seconds keep the fraction NowExpression writes.
	assert.Equal(t, "2026-01-02 03:04:05.000", SQLite{}.BindTime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), vo.Timestamp))

	for _, d := range []Dialect{Oracle{}, Postgres{}, MySQL{}} {
		assert.Equal(t, at, d.BindTime(at, vo.Timestamp), d.Name())
	}
}

func TestLookup(t *testing.T) {
	d, err := ByName(" PostgreSQL ")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = ForDriver("pgx")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = ForDriver("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = ByName("db2")
	assert.ErrorIs(t, err, ErrUnknownDialect)
	_, err = ForDriver("odbc")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}
