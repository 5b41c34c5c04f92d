package dialect

import (
	"fmt"
	"time"

	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/vo"
)

// Oracle slices with ROWNUM and binds :n placeholders.
type Oracle struct{}

func (Oracle) Name() string { return "oracle" }

func (Oracle) DateExpr(column string, g clause.Granularity) string {
	return clause.DefaultSyntax.DateExpr(column, g)
}

func (Oracle) LikeEscape() string { return clause.DefaultSyntax.LikeEscape() }

func (Oracle) RenderSlice(query string, s Slice) string {
	switch {
	case s.IsZero():
		return query
	case s.End <= 0:
		return fmt.Sprintf("SELECT * FROM (SELECT q_.*, ROWNUM rnum_ FROM (%s) q_) WHERE rnum_ >= %d", query, s.Start)
	case s.Start <= 1:
		return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, s.End)
	}
	return fmt.Sprintf("SELECT * FROM (SELECT q_.*, ROWNUM rnum_ FROM (%s) q_ WHERE ROWNUM <= %d) WHERE rnum_ >= %d",
		query, s.End, s.Start)
}

func (Oracle) RenderJoin(base string, joins []vo.Join) string { return renderJoin(base, joins) }

func (Oracle) NowExpression() string { return "SYSTIMESTAMP" }

func (Oracle) NextIDExpression(sequence string) string {
	if sequence == "" {
		return ""
	}
	return sequence + ".NEXTVAL"
}

func (Oracle) SelectExpression(expr string) string { return "SELECT " + expr + " FROM DUAL" }

func (Oracle) InsertReturning(string) string { return "" }

func (Oracle) Rebind(query string) string { return rebind(query, colon) }

func (Oracle) BindTime(t time.Time, _ vo.ScalarType) any { return t }
