package dialect

import (
	"fmt"
	"time"

	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/vo"
)

// SQLite slices with LIMIT/OFFSET and truncates dates with strftime.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) DateExpr(column string, g clause.Granularity) string {
	return "strftime('" + g.Strftime() + "'," + column + ")"
}

func (SQLite) LikeEscape() string { return `ESCAPE '\'` }

func (SQLite) RenderSlice(query string, s Slice) string {
	switch {
	case s.IsZero():
		return query
	case s.offset() == 0:
		return fmt.Sprintf("%s LIMIT %d", query, s.limit())
	}
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, s.limit(), s.offset())
}

func (SQLite) RenderJoin(base string, joins []vo.Join) string { return renderJoin(base, joins) }

func (SQLite) NowExpression() string { return "strftime('%Y-%m-%d %H:%M:%f','now')" }

func (SQLite) NextIDExpression(string) string { return "" }

func (SQLite) SelectExpression(expr string) string { return "SELECT " + expr }

func (SQLite) InsertReturning(column string) string { return " RETURNING " + column }

func (SQLite) Rebind(query string) string { return query }

// SQLite keeps dates as text. Binds use the layouts NowExpression and the
// DATE columns hold, since a text comparison never matches another layout.
const (
	sqliteDate      = "2006-01-02"
	sqliteTimestamp = "2006-01-02 15:04:05.000"
)

func (SQLite) BindTime(t time.Time, scalar vo.ScalarType) any {
	if scalar == vo.Date {
		return t.Format(sqliteDate)
	}
	return t.UTC().Format(sqliteTimestamp)
}
