// Package harness runs YAML scenarios against the data access engine.
//
// A scenario starts from a fresh in-memory SQLite database holding the demo
// tables, runs optional setup SQL, then a list of engine operations. Each
// step may state the outcome it expects; assertions check the trace and
// the final table contents.
//
// # Scenario Format
//
//	name: stale_update
//	description: "A second writer with the old version is refused"
//	setup:
//	  - INSERT INTO person (id, name, owner, version) VALUES (1, 'Ann', 'ann', 1)
//	steps:
//	  - op: update
//	    user: ann
//	    request: {entity: Person, id: 1, version: 1, values: {name: Anna}}
//	    expect: {status: OK}
//	  - op: update
//	    request: {entity: Person, id: 1, version: 1, values: {name: Annie}}
//	    expect: {status: CHANGED_TIMESTAMP}
//	assertions:
//	  - type: final_state
//	    table: person
//	    where: {id: 1}
//	    expect: {name: Anna, version: 2}
//
// Requests use the same YAML as the command line request files. A scenario
// is one session: each user keeps a sort memory per entity, so list steps
// with SORT_ORIENTATION: PERMUTE flip direction from one step to the next.
//
// # Assertion Types
//
//   - final_state: exactly one row matches where; its columns match expect
//   - row_count: the number of rows matching where equals count
//   - trace_count: the number of steps with op and status equals count
//
// # Deterministic Testing
//
// STRING identities come from testutil.SequentialIDs ("address-0001", ...)
// and numeric ones from the database, so traces are stable and can be
// compared against golden files.
package harness
