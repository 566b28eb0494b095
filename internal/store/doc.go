// Package store is the reference executor: it dispatches validated
// statements to a database/sql connection.
//
// Supported drivers:
//   - sqlite3 (github.com/mattn/go-sqlite3), dialect sqlite
//   - postgres (github.com/lib/pq), dialect postgres
//   - pgx (github.com/jackc/pgx/v5/stdlib), dialect postgres
//   - mysql (github.com/go-sql-driver/mysql), dialect mysql
//
// # Binding
//
// Statements are rendered for the store's dialect. Literal slots are bound
// from their own values; deferred slots consume caller arguments in order.
// Values are never interpolated into SQL text.
//
// Arguments are only bound on a prepared handle. Exec and Fetch prepare
// through Statement.Prepare and close the handle before returning; Run is
// for statements without deferred slots.
//
// # SQLite Configuration
//
//   - WAL mode for file databases: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//   - a single open connection, so in-memory databases stay shared
package store
