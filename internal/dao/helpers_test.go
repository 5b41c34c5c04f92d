package dao

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsql/internal/authz"
	"github.com/roach88/recsql/internal/dialect"
	"github.com/roach88/recsql/internal/vo"
)

var (
	alice     = authz.User{Name: "alice"}
	christmas = time.Date(2007, 12, 23, 9, 1, 6, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
}

// newEngine builds an engine with logs suppressed.
func newEngine(t *testing.T, schema *vo.Schema, d dialect.Dialect, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	e, err := New(schema, d, opts...)
	require.NoError(t, err)
	return e
}

// newMock returns a sqlmock database that must see every expectation.
func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

// escape turns a literal statement into an anchored sqlmock pattern.
func escape(query string) string {
	return "^" + regexp.QuoteMeta(query) + "$"
}

func formatStatement(st Statement) []byte {
	var b strings.Builder
	b.WriteString(st.SQL)
	b.WriteByte('\n')
	for i, a := range st.Args {
		fmt.Fprintf(&b, "%d: %T %v\n", i+1, a, a)
	}
	return []byte(b.String())
}
