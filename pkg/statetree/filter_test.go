package statetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	state := mustDecode(t, `{"user":{"profile":{"name":"ada","age":36},"token":"secret"},"ui":{"theme":"dark"},"cart":[1,2]}`)

	t.Run("keeps only selected paths with their nesting", func(t *testing.T) {
		got := Filter(paths("user.profile.name", "cart"), state)
		assert.Equal(t, `{"user":{"profile":{"name":"ada"}},"cart":[1,2]}`, mustEncode(t, got))
	})

	t.Run("missing selector adds nothing", func(t *testing.T) {
		got := Filter(paths("user.missing.deep"), state)
		assert.Equal(t, `{}`, mustEncode(t, got))
		assert.True(t, got.Get(MustPath("user.missing.deep")).IsAbsent())

		got = Filter(paths("nobody.profile", "cart"), state)
		assert.Equal(t, `{"cart":[1,2]}`, mustEncode(t, got))
	})

	t.Run("overlapping selectors overwrite in order", func(t *testing.T) {
		got := Filter(paths("user.profile.name", "user"), state)
		assert.Equal(t, `{"user":{"profile":{"name":"ada","age":36},"token":"secret"}}`, mustEncode(t, got))
	})

	t.Run("result does not alias the input", func(t *testing.T) {
		got := Filter(paths("ui"), state)
		got.SetPath(MustPath("ui.theme"), String("light"))
		assert.True(t, state.Get(MustPath("ui.theme")).Equal(String("dark")))
	})

	t.Run("no selectors yields an empty map", func(t *testing.T) {
		assert.Equal(t, `{}`, mustEncode(t, Filter(nil, state)))
	})
}
