package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsql/internal/authz"
	"github.com/roach88/recsql/internal/testutil"
	"github.com/roach88/recsql/internal/vo"
)

func demoSchemas() []*vo.Schema {
	return []*vo.Schema{testutil.PersonSchema(), testutil.AddressSchema()}
}

// rowFilters hides inactive people from reads and limits writes to owners.
func rowFilters() authz.Static {
	return authz.Static{Filters: map[authz.Mode]map[string]string{
		authz.Read:  {"Person": "active = 1"},
		authz.Write: {"Person": "owner = :user"},
	}}
}

func load(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_PersonCRUD(t *testing.T) {
	result, err := Run(context.Background(), load(t, "person_crud"), demoSchemas())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 8)
	assert.Equal(t, int64(3), result.Trace[0].ID)
	assert.Equal(t, []any{int64(1), int64(3)}, result.Trace[4].IDs)
}

func TestRun_AddressIdentity(t *testing.T) {
	result, err := Run(context.Background(), load(t, "address_identity"), demoSchemas())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "address-0001", result.Trace[0].ID)
	assert.Equal(t, "address-0002", result.Trace[1].ID)
}

func TestRun_RowSecurity(t *testing.T) {
	s := load(t, "row_security")

	result, err := Run(context.Background(), s, demoSchemas(), WithAuthorizer(rowFilters()))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// Without filters every expectation about hidden rows fails.
	open, err := Run(context.Background(), s, demoSchemas())
	require.NoError(t, err)
	assert.False(t, open.Pass)
}

func TestRun_FreshDatabaseEachRun(t *testing.T) {
	s := load(t, "person_crud")

	first, err := Run(context.Background(), s, demoSchemas())
	require.NoError(t, err)
	second, err := Run(context.Background(), s, demoSchemas())
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	s := mustParse(t, `
name: unmet
setup:
  - INSERT INTO person (id, name, owner, version) VALUES (1, 'Ann', 'ann', 1)
steps:
  - op: get
    request: {entity: Person, id: 1}
    expect: {status: OK, record: {name: Bob}}
  - op: update
    request: {entity: Person, id: 1, version: 7, values: {name: X}}
    expect: {status: OK}
  - op: list
    request: {entity: Person}
    expect: {status: OK, count: 2, ids: [2]}
  - op: get
    request: {entity: Nobody, id: 1}
    expect: {status: OK}
  - op: count
    request: {entity: Person}
assertions:
  - {type: row_count, table: person, count: 3}
`)

	result, err := Run(context.Background(), s, demoSchemas())
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		"steps[0] get Person: record: name = Ann (string), want Bob (string)",
		"steps[1] update Person: expected status OK, got CHANGED_TIMESTAMP",
		"steps[2] list Person: expected count 2, got 1",
		"steps[2] list Person: expected ids [2], got [1]",
		`steps[3] get Nobody: expected status OK, got ERROR (unknown entity "Nobody")`,
		"assertions[0]: assertion failed: row_count: expected 3 row(s) in person where (no conditions), got 1",
	}, result.Errors)

	// A step without expectations is traced but never fails.
	assert.Equal(t, "OK", result.Trace[4].Status)
	assert.Equal(t, int64(1), result.Trace[4].Count)
}

func TestRun_ExpectedErrors(t *testing.T) {
	s := mustParse(t, `
name: errors
steps:
  - op: create
    request: {entity: Person, values: {shoeSize: 42}}
    expect: {status: ERROR}
  - op: get
    request: {entity: Nobody, id: 1}
    expect: {status: ERROR}
`)

	result, err := Run(context.Background(), s, demoSchemas())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Trace[0].Error, "shoeSize")
	assert.Equal(t, `unknown entity "Nobody"`, result.Trace[1].Error)
}

func TestRun_FailedWriteRollsBack(t *testing.T) {
	s := mustParse(t, `
name: rollback
setup:
  - INSERT INTO person (id, name, email, owner) VALUES (1, 'Ann', 'ann@example.com', 'ann')
steps:
  - op: create
    request: {entity: Person, values: {name: Copy, email: ann@example.com}}
    expect: {status: ERROR}
assertions:
  - {type: row_count, table: person, count: 1}
`)

	result, err := Run(context.Background(), s, demoSchemas())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Trace[0].Error, "UNIQUE")
}

func TestRun_SetupError(t *testing.T) {
	s := mustParse(t, `
name: broken
setup:
  - INSERT INTO nowhere VALUES (1)
steps:
  - op: count
    request: {entity: Person}
`)

	_, err := Run(context.Background(), s, demoSchemas())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]")
}
