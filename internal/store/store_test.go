package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty DSN")
}

func TestClose_MultipleCalls(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "second close is a no-op")
}

func TestPragmas_FileDatabase(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestPragmas_MemoryDatabase(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "memory"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestDialectFor(t *testing.T) {
	tests := map[string]string{
		"sqlite3":  "sqlite",
		"":         "sqlite",
		"postgres": "postgres",
		"pgx":      "postgres",
		"mysql":    "mysql",
	}
	for driver, want := range tests {
		d, err := DialectFor(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, want, string(d))
	}
	_, err := DialectFor("mssql")
	assert.Error(t, err)
}

func TestExecRawAndQuery(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.ExecRaw(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)")
	require.NoError(t, err)
	n, err := s.ExecRaw(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := s.Query(ctx, "SELECT v FROM kv WHERE k = ?", "a")
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var v int
	require.NoError(t, rows.Scan(&v))
	assert.Equal(t, 1, v)
	assert.Equal(t, "sqlite3", s.Driver())
	assert.NotNil(t, s.DB())
}
