package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRows_DecodesNestedNodeObject(t *testing.T) {
	raw := []map[string]any{
		{"n": `{"id":"abc","labels":["Person"],"properties":{"name":"Ada","active":true}}`},
	}
	rows := Rows(raw, []string{"n"})
	require.Len(t, rows, 1)
	n := rows[0]["n"].(map[string]any)
	require.Equal(t, "abc", n["id"])
	props := n["properties"].(map[string]any)
	require.Equal(t, "Ada", props["name"])
	require.Equal(t, true, props["active"])
}

func TestRows_LeavesPlainScalarsUntouched(t *testing.T) {
	raw := []map[string]any{{"id": "abc-123"}}
	rows := Rows(raw, []string{"id"})
	require.Equal(t, "abc-123", rows[0]["id"])
}

func TestRows_MissingColumnYieldsNil(t *testing.T) {
	raw := []map[string]any{{}}
	rows := Rows(raw, []string{"missing"})
	require.Nil(t, rows[0]["missing"])
}
