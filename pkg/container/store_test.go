package container

import (
	"testing"

	"github.com/dyluth/multitab/pkg/multitab"
	"github.com/dyluth/multitab/pkg/statetree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, v statetree.Value) string {
	t.Helper()
	data, err := statetree.Encode(v)
	require.NoError(t, err)
	return string(data)
}

func TestNew(t *testing.T) {
	assert.Equal(t, `{}`, encode(t, New(statetree.Absent()).State()))

	initial := statetree.Object(statetree.Field("a", statetree.Int(1)))
	s := New(initial)
	initial.Map().Set("a", statetree.Int(2))
	assert.Equal(t, `{"a":1}`, encode(t, s.State()))
}

func TestCommitNotifiesSubscribers(t *testing.T) {
	s := New(statetree.Absent())

	var got []string
	var types []string
	unsubscribe := s.Subscribe(func(m multitab.Mutation, state statetree.Value) {
		types = append(types, m.Type)
		got = append(got, encode(t, state))
	})

	require.NoError(t, s.Set("user.name", statetree.String("ada")))
	require.NoError(t, s.Delete("user.name"))

	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Set("x", statetree.Int(1)))

	assert.Equal(t, []string{"set", "delete"}, types)
	assert.Equal(t, []string{`{"user":{"name":"ada"}}`, `{"user":{}}`}, got)
	assert.Equal(t, `{"user":{},"x":1}`, encode(t, s.State()))
}

func TestSubscriberCanReadState(t *testing.T) {
	s := New(statetree.Absent())

	var seen string
	s.Subscribe(func(multitab.Mutation, statetree.Value) {
		seen = encode(t, s.State())
	})
	require.NoError(t, s.Set("a", statetree.Int(1)))
	assert.Equal(t, `{"a":1}`, seen)
}

func TestReplaceStateDoesNotNotify(t *testing.T) {
	s := New(statetree.Absent())

	calls := 0
	s.Subscribe(func(multitab.Mutation, statetree.Value) { calls++ })

	replacement := statetree.Object(statetree.Field("b", statetree.Int(2)))
	s.ReplaceState(replacement)
	replacement.Map().Set("b", statetree.Int(3))

	assert.Equal(t, 0, calls)
	assert.Equal(t, `{"b":2}`, encode(t, s.State()))
}

func TestStateIsACopy(t *testing.T) {
	s := New(statetree.Object(statetree.Field("a", statetree.Int(1))))
	st := s.State()
	st.Map().Set("a", statetree.Int(9))
	assert.Equal(t, `{"a":1}`, encode(t, s.State()))
}

func TestInvalidSelector(t *testing.T) {
	s := New(statetree.Absent())
	assert.Error(t, s.Set("a..b", statetree.Int(1)))
	assert.Error(t, s.Delete(""))
}
