package dialect

import (
	"fmt"
	"time"

	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/vo"
)

// maxRows stands in for "no limit" since MySQL has no OFFSET without LIMIT.
const maxRows = "18446744073709551615"

// MySQL slices with LIMIT/OFFSET. Sequences are not supported; identities
// come from AUTO_INCREMENT.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) DateExpr(column string, g clause.Granularity) string {
	return "DATE_FORMAT(" + column + ",'" + g.Strftime() + "')"
}

// LikeEscape doubles the backslash: MySQL string literals treat it as an
// escape character.
func (MySQL) LikeEscape() string { return `ESCAPE '\\'` }

func (MySQL) RenderSlice(query string, s Slice) string {
	switch {
	case s.IsZero():
		return query
	case s.End <= 0:
		return fmt.Sprintf("%s LIMIT %s OFFSET %d", query, maxRows, s.offset())
	case s.offset() == 0:
		return fmt.Sprintf("%s LIMIT %d", query, s.limit())
	}
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, s.limit(), s.offset())
}

func (MySQL) RenderJoin(base string, joins []vo.Join) string { return renderJoin(base, joins) }

func (MySQL) NowExpression() string { return "CURRENT_TIMESTAMP(6)" }

func (MySQL) NextIDExpression(string) string { return "" }

func (MySQL) SelectExpression(expr string) string { return "SELECT " + expr }

func (MySQL) InsertReturning(string) string { return "" }

func (MySQL) Rebind(query string) string { return query }

func (MySQL) BindTime(t time.Time, _ vo.ScalarType) any { return t }
