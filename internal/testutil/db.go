package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recsql/internal/store"
)

// People seeded by SeedPeople, in identity order.
var People = []struct {
	ID    int64
	Name  string
	Email any
	Born  any
	Score any
	Owner string
}{
	{1, "Alice Martin", "alice@example.com", "1980-05-14", 12.5, "alice"},
	{2, "Bob Dupont", "bob@example.com", "2007-12-23", 8.0, "bob"},
	{3, "Carol Durand", "carol@example.com", "2007-12-01", 15.0, "alice"},
	{4, "toto", "toto@example.com", nil, nil, "bob"},
	{5, "totoro", nil, "1990-01-01", 3.0, "alice"},
}

// OpenDemo opens a fresh SQLite database with the demo schema in a
// temporary directory. It is closed when the test ends.
func OpenDemo(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.ApplyDemoSchema(context.Background()))
	return s
}

// SeedPeople inserts People, all at version 1 and active except Carol.
func SeedPeople(t testing.TB, s *store.Store) {
	t.Helper()
	for _, p := range People {
		_, err := s.DB().Exec(
			`INSERT INTO person (id, name, email, born, score, active, owner, version) VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
			p.ID, p.Name, p.Email, p.Born, p.Score, p.Name != "Carol Durand", p.Owner,
		)
		require.NoError(t, err)
	}
}
