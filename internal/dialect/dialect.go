// Package dialect holds the per-database SQL differences: result slicing,
// date truncation, LIKE escaping, identity generation and placeholders.
//
// Statements are assembled with "?" placeholders and passed through Rebind
// last, so only this package knows a database's placeholder style.
package dialect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/recsql/internal/clause"
	"github.com/roach88/recsql/internal/vo"
)

// ErrUnknownDialect is returned by ByName and ForDriver.
var ErrUnknownDialect = errors.New("unknown dialect")

// Slice is a 1-based inclusive row window. End == 0 means unbounded.
type Slice struct {
	Start int
	End   int
}

// IsZero reports whether the slice selects every row.
func (s Slice) IsZero() bool {
	return s.Start <= 1 && s.End <= 0
}

func (s Slice) offset() int {
	if s.Start <= 1 {
		return 0
	}
	return s.Start - 1
}

func (s Slice) limit() int {
	if s.End <= 0 {
		return -1
	}
	return s.End - s.offset()
}

// Dialect renders what differs between databases.
type Dialect interface {
	clause.Syntax

	Name() string
	// RenderSlice wraps or suffixes query so it returns only the window.
	RenderSlice(query string, s Slice) string
	// RenderJoin appends joins to the base table expression.
	RenderJoin(base string, joins []vo.Join) string
	// NowExpression is the database's current-timestamp expression.
	NowExpression() string
	// NextIDExpression returns the expression drawing the next value of
	// sequence, or "" when the database relies on auto-increment.
	NextIDExpression(sequence string) string
	// SelectExpression turns a scalar expression into a query.
	SelectExpression(expr string) string
	// InsertReturning is the suffix returning the generated identity, or ""
	// when the driver reports it through LastInsertId.
	InsertReturning(column string) string
	// Rebind rewrites "?" placeholders into the driver's style.
	Rebind(query string) string
	// BindTime returns the bind value of a DATE or TIMESTAMP in the form
	// the database stores and compares it.
	BindTime(t time.Time, scalar vo.ScalarType) any
}

var joinKeywords = []string{"JOIN ", "LEFT ", "RIGHT ", "INNER ", "FULL ", "CROSS ", "NATURAL "}

func renderJoin(base string, joins []vo.Join) string {
	var b strings.Builder
	b.WriteString(base)
	for _, j := range joins {
		b.WriteByte(' ')
		upper := strings.ToUpper(strings.TrimSpace(j.Table))
		prefixed := false
		for _, kw := range joinKeywords {
			if strings.HasPrefix(upper, kw) {
				prefixed = true
				break
			}
		}
		if !prefixed {
			b.WriteString("JOIN ")
		}
		b.WriteString(strings.TrimSpace(j.Table))
		b.WriteString(" ON ")
		b.WriteString(j.On)
	}
	return b.String()
}

// rebind replaces every "?" outside quoted literals with mark(n), n 1-based.
func rebind(query string, mark func(n int) string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteString(mark(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func dollar(n int) string { return "$" + strconv.Itoa(n) }
func colon(n int) string  { return ":" + strconv.Itoa(n) }

var byName = map[string]Dialect{
	"oracle":     Oracle{},
	"postgres":   Postgres{},
	"postgresql": Postgres{},
	"mysql":      MySQL{},
	"sqlite":     SQLite{},
	"sqlite3":    SQLite{},
}

var byDriver = map[string]Dialect{
	"godror":   Oracle{},
	"oracle":   Oracle{},
	"postgres": Postgres{},
	"pgx":      Postgres{},
	"mysql":    MySQL{},
	"sqlite3":  SQLite{},
}

// ByName returns the dialect registered under a configuration name.
func ByName(name string) (Dialect, error) {
	if d, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
}

// ForDriver returns the dialect matching a database/sql driver name.
func ForDriver(driver string) (Dialect, error) {
	if d, ok := byDriver[driver]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: no dialect for driver %q", ErrUnknownDialect, driver)
}
