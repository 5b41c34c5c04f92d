// Package dao is the generic data access engine. One Engine is bound to
// one entity schema and a dialect; it assembles SELECT, COUNT, UPDATE,
// INSERT and DELETE statements from criteria records and query parameters
// and runs them on a caller-supplied connection or transaction.
//
// The engine holds no connection, no transaction and no mutable state.
// Commit, rollback and release belong to the caller (see store.Tx).
//
// Outcomes:
//
//	OK                 the operation did what was asked
//	NOT_FOUND          no row matches the identity (or it is not visible)
//	NOTHING_TODO       nil identity or nothing to write; no statement ran
//	CHANGED_TIMESTAMP  the stored version differs from the expected one
//	NO_RIGHTS          written, but no longer visible to the caller
//
// These are successful results. Errors are *Error values carrying
// ErrCodeProgramming or ErrCodeDatabase.
package dao
