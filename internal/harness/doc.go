// Package harness runs statement scenarios against a fresh in-memory SQLite
// database and checks the results.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario checks"
//	specs:
//	  - specs/users.cue
//	setup:
//	  - CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)
//	steps:
//	  - statement: add_user
//	    args: [1, "ada"]
//	    expect:
//	      sql: "INSERT INTO users (id, name) VALUES (?, ?)"
//	      affected: 1
//	  - statement: list_users
//	    expect:
//	      rows:
//	        - { id: 1, name: "ada" }
//	  - statement: orphan_select
//	    expect:
//	      error: STRUCTURAL_INCOMPLETENESS
//	assertions:
//	  - type: trace_contains
//	    statement: add_user
//	    args: [1, "ada"]
//	  - type: final_state
//	    table: users
//	    where: { id: 1 }
//	    expect: { name: "ada" }
//
// Setup entries are raw SQL run before any step. Each step renders the
// named statement for SQLite and executes it: SELECT statements fetch rows,
// the rest report rows affected. A step with run: true goes through
// Statement.Run instead, which refuses parameterized statements.
//
// # Traces
//
// Every step appends one TraceEvent with a logical sequence number. The
// trace is serialized as canonical JSON for golden comparison, so two runs
// of the same scenario produce byte-identical snapshots.
//
// # Assertions
//
//   - trace_contains: a step ran the statement (with args, if given)
//   - trace_order: statements ran in this relative order
//   - trace_count: a statement ran exactly N times
//   - final_state: exactly one row matches where, with the expected columns
//   - row_count: a table holds exactly N rows
//
// final_state and row_count name a table from the scenario's catalog; the
// harness selects its catalog columns with a composed statement.
//
// # Golden Files
//
// RunWithGolden compares the trace against testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
