package clause

// Granularity is the truncation applied by DAY_EQU, MONTH_EQU and YEAR_EQU.
type Granularity int

const (
	Day Granularity = iota + 1
	Month
	Year
)

// Layout returns the Go time layout of the truncated value ("2006.01.02").
func (g Granularity) Layout() string {
	switch g {
	case Month:
		return "2006.01"
	case Year:
		return "2006"
	}
	return "2006.01.02"
}

// Mask returns the TO_CHAR format mask ("yyyy.mm.dd").
func (g Granularity) Mask() string {
	switch g {
	case Month:
		return "yyyy.mm"
	case Year:
		return "yyyy"
	}
	return "yyyy.mm.dd"
}

// Strftime returns the strftime/DATE_FORMAT pattern ("%Y.%m.%d").
func (g Granularity) Strftime() string {
	switch g {
	case Month:
		return "%Y.%m"
	case Year:
		return "%Y"
	}
	return "%Y.%m.%d"
}

// Syntax is the part of a SQL dialect the clause builder depends on.
type Syntax interface {
	// DateExpr wraps column in a date-truncation expression.
	DateExpr(column string, g Granularity) string
	// LikeEscape is the escape clause appended to case-insensitive LIKE.
	LikeEscape() string
}

// DefaultSyntax renders TO_CHAR truncation and the ODBC escape clause.
var DefaultSyntax Syntax = odbcSyntax{}

type odbcSyntax struct{}

func (odbcSyntax) DateExpr(column string, g Granularity) string {
	return "TO_CHAR(" + column + ",'" + g.Mask() + "')"
}

func (odbcSyntax) LikeEscape() string {
	return `{escape '\'}`
}
