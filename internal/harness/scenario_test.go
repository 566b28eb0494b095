package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlclause/internal/testutil"
)

func TestLoadScenario_Fixture(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "users_crud.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "users_crud", s.Name)
	require.Len(t, s.Specs, 1)
	assert.Equal(t, filepath.Join("testdata", "specs", "users.cue"), s.Specs[0])
	assert.Len(t, s.Setup, 2)
	require.Len(t, s.Steps, 6)

	first := s.Steps[0]
	assert.Equal(t, "add_user", first.Statement)
	assert.Equal(t, []any{1, "ada"}, first.Args)
	require.NotNil(t, first.Expect)
	require.NotNil(t, first.Expect.Affected)
	assert.Equal(t, int64(1), *first.Expect.Affected)

	assert.True(t, s.Steps[5].Run)
	assert.Len(t, s.Assertions, 4)
}

func TestLoadScenario_Invalid(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "users.cue", testutil.UsersSpec)

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: x\nspecs: [users.cue]\nsteps: [{statement: add_user}]\n",
			want: "name is required",
		},
		{
			name: "name not an identifier",
			yaml: "name: bad name\ndescription: x\nspecs: [users.cue]\nsteps: [{statement: add_user}]\n",
			want: "must be an identifier",
		},
		{
			name: "missing description",
			yaml: "name: s\nspecs: [users.cue]\nsteps: [{statement: add_user}]\n",
			want: "description is required",
		},
		{
			name: "no specs",
			yaml: "name: s\ndescription: x\nsteps: [{statement: add_user}]\n",
			want: "specs list is required",
		},
		{
			name: "spec missing",
			yaml: "name: s\ndescription: x\nspecs: [nope.cue]\nsteps: [{statement: add_user}]\n",
			want: "spec file not found",
		},
		{
			name: "no steps",
			yaml: "name: s\ndescription: x\nspecs: [users.cue]\n",
			want: "steps list is required",
		},
		{
			name: "step without statement",
			yaml: "name: s\ndescription: x\nspecs: [users.cue]\nsteps: [{args: [1]}]\n",
			want: "steps[0]: statement is required",
		},
		{
			name: "run with args",
			yaml: "name: s\ndescription: x\nspecs: [users.cue]\nsteps: [{statement: purge_users, run: true, args: [1]}]\n",
			want: "run takes no args",
		},
		{
			name: "error with affected",
			yaml: "name: s\ndescription: x\nspecs: [users.cue]\nsteps: [{statement: purge_users, expect: {error: DRIVER_ERROR, affected: 1}}]\n",
			want: "error cannot be combined",
		},
		{
			name: "unknown field",
			yaml: "name: s\ndescription: x\nspecs: [users.cue]\nsteps: [{statement: purge_users}]\nassertion: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "unknown assertion type",
			yaml: "name: s\ndescription: x\nspecs: [users.cue]\nsteps: [{statement: purge_users}]\nassertions: [{type: eventually}]\n",
			want: `unknown assertion type "eventually"`,
		},
		{
			name: "final_state without expect",
			yaml: "name: s\ndescription: x\nspecs: [users.cue]\nsteps: [{statement: purge_users}]\nassertions: [{type: final_state, table: users}]\n",
			want: "expect is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, dir, "scenario.yaml", tt.yaml)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	specsDir := t.TempDir()
	testutil.WriteFile(t, specsDir, "users.cue", testutil.UsersSpec)
	path := testutil.WriteFile(t, t.TempDir(), "s.yaml",
		"name: s\ndescription: x\nspecs: [users.cue]\nsteps: [{statement: purge_users}]\n")

	s, err := LoadScenarioWithBasePath(path, specsDir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(specsDir, "users.cue")}, s.Specs)
}
