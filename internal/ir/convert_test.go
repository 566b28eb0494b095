package ir

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGo(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"value passthrough", String("x"), String("x")},
		{"bool", true, Bool(true)},
		{"string", "ada", String("ada")},
		{"int", 3, Int(3)},
		{"int32", int32(-4), Int(-4)},
		{"uint64", uint64(9), Int(9)},
		{"integral float", float64(12), Int(12)},
		{"nested", map[string]any{"a": []any{1, "b"}}, Object{"a": Array{Int(1), String("b")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGoRejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"fractional float", 1.25},
		{"nan", math.NaN()},
		{"huge uint", uint64(math.MaxUint64)},
		{"struct", struct{}{}},
		{"nested float", []any{1, 2.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromGo(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestToDriver(t *testing.T) {
	tests := []struct {
		in   Value
		want any
	}{
		{Null{}, nil},
		{nil, nil},
		{String("s"), "s"},
		{Int(5), int64(5)},
		{Bool(true), true},
	}
	for _, tt := range tests {
		got, err := ToDriver(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ToDriver(Array{Int(1)})
	assert.Error(t, err)
	_, err = ToDriver(Object{})
	assert.Error(t, err)
}

func TestFromDriver(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, Null{}, FromDriver(nil))
	assert.Equal(t, Int(7), FromDriver(int64(7)))
	assert.Equal(t, String("raw"), FromDriver([]byte("raw")))
	assert.Equal(t, Int(3), FromDriver(float64(3)))
	assert.Equal(t, String("2.5"), FromDriver(2.5))
	assert.Equal(t, Bool(false), FromDriver(false))
	assert.Equal(t, String("2024-03-01T12:00:00Z"), FromDriver(ts))
}
