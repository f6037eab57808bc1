package statetree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// mustDecode parses JSON test fixtures.
func mustDecode(t *testing.T, s string) Value {
	t.Helper()
	v, err := Decode([]byte(s))
	require.NoError(t, err)
	return v
}

// mustEncode renders a Value as compact JSON.
func mustEncode(t *testing.T, v Value) string {
	t.Helper()
	b, err := Encode(v)
	require.NoError(t, err)
	return string(b)
}

func paths(selectors ...string) []Path {
	out := make([]Path, len(selectors))
	for i, s := range selectors {
		out[i] = MustPath(s)
	}
	return out
}
