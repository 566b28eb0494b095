package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/sqlclause/internal/store"
	"github.com/roach88/sqlclause/internal/tableset"
)

// UsersDDL and OrdersDDL create the fixture tables in SQLite.
const (
	UsersDDL  = `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT, active INTEGER NOT NULL DEFAULT 1)`
	OrdersDDL = `CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, total INTEGER NOT NULL)`
)

// UsersSpec is a CUE catalog matching UsersDDL and OrdersDDL, plus a few
// statements over it.
const UsersSpec = `
table: users: { columns: ["id", "name", "email", "active"] }
table: orders: { columns: ["id", "user_id", "total"] }

statement: add_user: {
	kind: "insert"
	table: "users"
	columns: ["id", "name"]
}
statement: list_users: {
	kind: "select"
	columns: ["users.id", "users.name"]
	from: ["users"]
}
statement: rename_user: {
	kind: "update"
	table: "users"
	set: [{column: "name"}]
	where: [{column: "id", param: "id"}]
}
statement: purge_users: {
	kind: "delete"
	table: "users"
}
statement: orphan_totals: {
	kind: "select"
	columns: ["users.name", "orders.total"]
	from: ["orders"]
}
`

// Users is the users fixture table.
func Users() tableset.Table {
	return tableset.NewTable("users", "id", "name", "email", "active")
}

// Orders is the orders fixture table.
func Orders() tableset.Table {
	return tableset.NewTable("orders", "id", "user_id", "total")
}

// MemoryStore opens an in-memory SQLite store, runs ddl, and closes the
// store when the test ends.
func MemoryStore(t testing.TB, ddl ...string) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	for _, q := range ddl {
		if _, err := st.ExecRaw(ctx, q); err != nil {
			t.Fatalf("ddl %q: %v", q, err)
		}
	}
	return st
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
