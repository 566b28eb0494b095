package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	values := []Value{Null{}, String("s"), Int(1), Bool(true), Array{}, Object{}}
	assert.Len(t, values, 6)
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{"zebra": Int(1), "alpha": Int(2), "beta": Int(3)}
	assert.Equal(t, []string{"alpha", "beta", "zebra"}, obj.SortedKeys())
	assert.Empty(t, Object{}.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"a", "a", 0},
		{"a", "ab", -1},
		{"\U00010000", "\uE000", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, compareKeysRFC8785(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestMarshalValue(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null{}, "null"},
		{"nil", nil, "null"},
		{"string", String("a<b"), `"a<b"`},
		{"int", Int(7), "7"},
		{"bool", Bool(false), "false"},
		{"array", Array{Int(1), Null{}}, "[1,null]"},
		{"object", Object{"b": Int(2), "a": String("x")}, `{"a":"x","b":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestObjectEncodesThroughEncodingJSON(t *testing.T) {
	data, err := json.Marshal(map[string]any{"row": Object{"z": Int(1), "a": Null{}}})
	require.NoError(t, err)
	assert.Equal(t, `{"row":{"a":null,"z":1}}`, string(data))
}

func TestUnmarshalValue(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"id": 1, "name": "ada", "tags": ["x"], "gone": null, "ok": true}`))
	require.NoError(t, err)
	assert.Equal(t, Object{
		"id":   Int(1),
		"name": String("ada"),
		"tags": Array{String("x")},
		"gone": Null{},
		"ok":   Bool(true),
	}, v)
}

func TestUnmarshalValueRejectsFloats(t *testing.T) {
	for _, input := range []string{`1.5`, `1e3`, `{"a": 2.0}`} {
		_, err := UnmarshalValue([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "NULL", Format(Null{}))
	assert.Equal(t, `"ada"`, Format(String("ada")))
	assert.Equal(t, "42", Format(Int(42)))
	assert.Equal(t, "TRUE", Format(Bool(true)))
	assert.Equal(t, "[1,2]", Format(Array{Int(1), Int(2)}))
}
