// Package store opens database connections for the data access engine and
// provides the scoped transaction the engine runs in.
//
// The engine never begins, commits or rolls back. Callers do:
//
//	tx, err := s.Begin(ctx)
//	if err != nil {
//		return err
//	}
//	defer tx.Close() // rolls back unless committed
//
//	out, err := eng.Update(ctx, tx, user, changes, id, version)
//	if err != nil {
//		return err
//	}
//	return tx.Commit()
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Postgres (lib/pq as "postgres", pgx as "pgx") and MySQL ("mysql") are
// opened as given; their schema is the caller's business.
package store
