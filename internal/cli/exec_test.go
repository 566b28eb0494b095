package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlclause/internal/config"
	"github.com/roach88/sqlclause/internal/store"
	"github.com/roach88/sqlclause/internal/testutil"
)

func testConfig(specsDir, dsn string) *config.Config {
	return &config.Config{
		Dialect:  "sqlite",
		SpecsDir: specsDir,
		Database: store.Config{Driver: "sqlite3", DSN: dsn},
	}
}

// sqliteFile creates a database file holding the users table.
func sqliteFile(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "app.db")
	st, err := store.OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	_, err = st.ExecRaw(context.Background(), testutil.UsersDDL)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return dsn
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestExecInsertThenSelect(t *testing.T) {
	specsDir := writeSpecs(t, validSpecs)
	dsn := sqliteFile(t)

	out, err := runRoot(t, "exec", specsDir, "add_user", "--arg", "1", "--arg", "ada", "--dsn", dsn)
	require.NoError(t, err)
	assert.Equal(t, "✓ add_user: 1 row(s)\n", out)

	_, err = runRoot(t, "exec", specsDir, "add_user", "--arg", "2", "--arg", "null value", "--dsn", dsn)
	require.NoError(t, err)

	out, err = runRoot(t, "exec", specsDir, "list_users", "--dsn", dsn)
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":1,\"name\":\"ada\"}\n{\"id\":2,\"name\":\"null value\"}\n2 row(s)\n", out)
}

func TestExecSelectJSON(t *testing.T) {
	specsDir := writeSpecs(t, validSpecs)
	dsn := sqliteFile(t)

	_, err := runRoot(t, "exec", specsDir, "add_user", "--arg", "7", "--arg", "grace", "--dsn", dsn)
	require.NoError(t, err)

	out, err := runRoot(t, "--format", "json", "exec", specsDir, "list_users", "--dsn", dsn)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Statement string           `json:"statement"`
			SQL       string           `json:"sql"`
			Rows      []map[string]any `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "SELECT users.id, users.name FROM users", resp.Data.SQL)
	assert.Equal(t, []map[string]any{{"id": float64(7), "name": "grace"}}, resp.Data.Rows)
}

func TestExecRunCountsRows(t *testing.T) {
	specsDir := writeSpecs(t, validSpecs)
	dsn := sqliteFile(t)

	out, err := runRoot(t, "exec", specsDir, "list_users", "--run", "--dsn", dsn)
	require.NoError(t, err)
	assert.Equal(t, "✓ list_users: 0 row(s)\n", out)
}

func TestExecRunRejectsArgs(t *testing.T) {
	specsDir := writeSpecs(t, validSpecs)

	out, err := runRoot(t, "exec", specsDir, "list_users", "--run", "--arg", "1", "--dsn", sqliteFile(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "--run takes no --arg values")
}

func TestExecParameterMismatch(t *testing.T) {
	specsDir := writeSpecs(t, validSpecs)

	out, err := runRoot(t, "exec", specsDir, "add_user", "--arg", "1", "--dsn", sqliteFile(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E203]")
}

func TestExecUnknownStatement(t *testing.T) {
	specsDir := writeSpecs(t, validSpecs)

	out, err := runRoot(t, "exec", specsDir, "nope", "--dsn", sqliteFile(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]: no such statement: nope")
}

func TestExecDynamicDialectMismatch(t *testing.T) {
	specsDir := writeSpecs(t, validSpecs)

	out, err := runRoot(t, "exec", specsDir, "active_users", "--dsn", sqliteFile(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E207]")
	assert.Contains(t, out, "built for postgres")
}

func TestExecRequiresDSN(t *testing.T) {
	t.Setenv("SQLCLAUSE_DATABASE_DSN", "")
	specsDir := writeSpecs(t, validSpecs)

	out, err := runRoot(t, "exec", specsDir, "list_users")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "database.dsn is required")
}

func TestExecDSNFromEnv(t *testing.T) {
	specsDir := writeSpecs(t, validSpecs)
	t.Setenv("SQLCLAUSE_DATABASE_DSN", sqliteFile(t))

	out, err := runRoot(t, "exec", specsDir, "list_users")
	require.NoError(t, err)
	assert.Equal(t, "0 row(s)\n", out)
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"42", "true", "null", "ada", "'7'"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(42), true, nil, "ada", "7"}, args)

	_, err = parseArgs([]string{"1", "1.5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--arg 2")

	_, err = parseArgs([]string{"[1, 2]"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot bind")
}

func TestExecuteBindsThroughPreparedHandles(t *testing.T) {
	ctx := context.Background()
	loaded, err := LoadSpecs(writeSpecs(t, validSpecs))
	require.NoError(t, err)
	st := testutil.MemoryStore(t, testutil.UsersDDL)

	add, err := findDefinition(loaded.Specs, "add_user")
	require.NoError(t, err)
	res, err := execute(ctx, st, add, []any{int64(1), "ada"}, false)
	require.NoError(t, err)
	require.NotNil(t, res.Affected)
	assert.Equal(t, int64(1), *res.Affected)

	list, err := findDefinition(loaded.Specs, "list_users")
	require.NoError(t, err)
	res, err = execute(ctx, st, list, nil, false)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)

	assert.Equal(t, 2, st.PreparedTotal())
	assert.Equal(t, 0, st.OpenHandles())

	_, err = execute(ctx, st, list, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 2, st.PreparedTotal(), "--run does not prepare")
}
