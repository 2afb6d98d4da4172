package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestNormalizeLikedBy(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"null", `null`, []string{}},
		{"array", `["u1","u2"]`, []string{"u1", "u2"}},
		{"array with duplicates", `["u2","u1","u2"]`, []string{"u2", "u1"}},
		{"map of flags", `{"u2":true,"u1":true,"u3":false}`, []string{"u1", "u2"}},
		{"map with mixed truthiness", `{"a":1,"b":0,"c":"yes","d":null}`, []string{"a", "c"}},
		{"scalar", `"u1"`, []string{"u1"}},
		{"empty scalar", `""`, []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeLikedBy(decode(t, tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeLikedByRejectsUnknownShapes(t *testing.T) {
	for _, raw := range []string{`42`, `true`, `[1,2]`} {
		_, err := NormalizeLikedBy(decode(t, raw))
		assert.Error(t, err, raw)
	}
}
