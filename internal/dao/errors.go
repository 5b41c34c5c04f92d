package dao

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeProgramming marks a defect in the caller or the schema: a
	// malformed criterion, an unknown attribute or parameter. Never retried.
	ErrCodeProgramming ErrorCode = "PROGRAMMING"

	// ErrCodeDatabase marks a failure reported by the database. The
	// underlying driver error is kept unmodified in Err.
	ErrCodeDatabase ErrorCode = "DATABASE"
)

// Error is returned by every engine operation that fails. Business
// outcomes (NOT_FOUND, CHANGED_TIMESTAMP, ...) are never errors.
type Error struct {
	Code   ErrorCode
	Op     string
	Entity string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Entity, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Engine) programming(op string, err error) error {
	return &Error{Code: ErrCodeProgramming, Op: op, Entity: e.schema.Entity, Err: err}
}

func (e *Engine) database(op string, err error) error {
	return &Error{Code: ErrCodeDatabase, Op: op, Entity: e.schema.Entity, Err: err}
}

// IsProgrammingError returns true if err is a programming error.
// Uses errors.As to handle wrapped errors.
func IsProgrammingError(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == ErrCodeProgramming
}

// IsDatabaseError returns true if err came from the database.
func IsDatabaseError(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == ErrCodeDatabase
}

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry   = 1062
	mysqlForeignKeyParent = 1451
	mysqlForeignKeyChild  = 1452
	mysqlCheckViolation   = 3819
)

// IsConstraintError reports whether err is a unique, foreign-key, check or
// not-null violation raised by one of the supported drivers.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}

	// SQLSTATE class 23: integrity constraint violation.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry, mysqlForeignKeyParent, mysqlForeignKeyChild, mysqlCheckViolation:
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
