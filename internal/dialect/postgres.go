package dialect

import (
	"strconv"
	"strings"
	"time"

	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/vo"
)

// Postgres slices with OFFSET/FETCH and binds $n placeholders.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) DateExpr(column string, g clause.Granularity) string {
	return "TO_CHAR(" + column + ",'" + g.Mask() + "')"
}

func (Postgres) LikeEscape() string { return `ESCAPE '\'` }

func (Postgres) RenderSlice(query string, s Slice) string {
	if s.IsZero() {
		return query
	}
	var b strings.Builder
	b.WriteString(query)
	if off := s.offset(); off > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(off))
		b.WriteString(" ROWS")
	}
	if n := s.limit(); n >= 0 {
		b.WriteString(" FETCH NEXT ")
		b.WriteString(strconv.Itoa(n))
		b.WriteString(" ROWS ONLY")
	}
	return b.String()
}

func (Postgres) RenderJoin(base string, joins []vo.Join) string { return renderJoin(base, joins) }

func (Postgres) NowExpression() string { return "CURRENT_TIMESTAMP" }

func (Postgres) NextIDExpression(sequence string) string {
	if sequence == "" {
		return ""
	}
	return "nextval('" + sequence + "')"
}

func (Postgres) SelectExpression(expr string) string { return "SELECT " + expr }

func (Postgres) InsertReturning(column string) string { return " RETURNING " + column }

func (Postgres) Rebind(query string) string { return rebind(query, dollar) }

func (Postgres) BindTime(t time.Time, _ vo.ScalarType) any { return t }
