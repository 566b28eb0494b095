package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Fixtures(t *testing.T) {
	for _, name := range []string{"users_crud", "error_codes"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_Marshal(t *testing.T) {
	affected := int64(0)
	snap := TraceSnapshot{
		ScenarioName: "tiny",
		Trace: []TraceEvent{
			{Seq: 1, Statement: "purge_users", SQL: "DELETE FROM users", Affected: &affected},
			{Seq: 2, Statement: "add_user", Args: []any{1, nil, true}, Error: "PARAMETER_MISMATCH"},
		},
	}

	data, err := snap.Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"tiny","trace":[`+
			`{"affected":0,"seq":1,"sql":"DELETE FROM users","statement":"purge_users"},`+
			`{"args":[1,null,true],"error":"PARAMETER_MISMATCH","seq":2,"statement":"add_user"}]}`,
		string(data))
}

func TestTraceSnapshot_MarshalIsStable(t *testing.T) {
	snap := TraceSnapshot{ScenarioName: "s", Trace: sampleTrace()}
	a, err := snap.Marshal()
	require.NoError(t, err)
	b, err := snap.Marshal()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
