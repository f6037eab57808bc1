package multitab_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyluth/multitab/pkg/broadcast"
	"github.com/dyluth/multitab/pkg/container"
	"github.com/dyluth/multitab/pkg/multitab"
	"github.com/dyluth/multitab/pkg/statetree"
	"github.com/dyluth/multitab/pkg/storage"
	"github.com/dyluth/multitab/pkg/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tab is one context: its own backend, store, host container and session
type tab struct {
	store   *broadcast.Store
	host    *container.Store
	session *multitab.Session
}

func openTab(t *testing.T, m *memstore.Medium, opts multitab.Options, initial string) *tab {
	t.Helper()
	ctx := context.Background()

	b := m.Attach()
	store := broadcast.NewStore(b)
	t.Cleanup(func() {
		store.Close()
		b.Close()
	})

	plugin, err := multitab.New(ctx, store, opts)
	require.NoError(t, err)

	host := container.New(decode(t, initial))
	session, err := plugin.Install(ctx, host)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return &tab{store: store, host: host, session: session}
}

func decode(t *testing.T, s string) statetree.Value {
	t.Helper()
	if s == "" {
		return statetree.Absent()
	}
	v, err := statetree.Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func encode(t *testing.T, v statetree.Value) string {
	t.Helper()
	data, err := statetree.Encode(v)
	require.NoError(t, err)
	return string(data)
}

func assertEventuallyState(t *testing.T, host *container.Store, want string) {
	t.Helper()
	var last string
	ok := assert.Eventually(t, func() bool {
		last = encode(t, host.State())
		return last == want
	}, 2*time.Second, 10*time.Millisecond)
	if !ok {
		t.Logf("last state: %s", last)
	}
}

func assertStaysState(t *testing.T, host *container.Store, want string) {
	t.Helper()
	assert.Never(t, func() bool {
		return encode(t, host.State()) != want
	}, 150*time.Millisecond, 10*time.Millisecond)
}

type brokenBackend struct {
	storage.Backend
}

func (brokenBackend) Set(context.Context, string, string) error {
	return errors.New("storage disabled")
}

// indexFailingBackend refuses writes to the namespace index only
type indexFailingBackend struct {
	storage.Backend
}

func (b indexFailingBackend) Set(ctx context.Context, key, value string) error {
	if key == broadcast.IndexKey {
		return errors.New("index is read-only")
	}
	return b.Backend.Set(ctx, key, value)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("storage unavailable is fatal", func(t *testing.T) {
		_, err := multitab.New(ctx, broadcast.NewStore(brokenBackend{}), multitab.Options{})
		assert.ErrorIs(t, err, multitab.ErrStorageUnavailable)
	})

	t.Run("invalid states path", func(t *testing.T) {
		store := broadcast.NewStore(memstore.NewMedium().Attach())
		_, err := multitab.New(ctx, store, multitab.Options{StatesPaths: []string{"a..b"}})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, multitab.ErrStorageUnavailable)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := multitab.New(ctx, nil, multitab.Options{})
		assert.Error(t, err)
	})

	t.Run("mode follows options", func(t *testing.T) {
		store := broadcast.NewStore(memstore.NewMedium().Attach())
		p, err := multitab.New(ctx, store, multitab.Options{})
		require.NoError(t, err)
		assert.Equal(t, multitab.ModeSingleBlob, p.Mode())

		p, err = multitab.New(ctx, store, multitab.Options{SaveStoreIndividually: true})
		require.NoError(t, err)
		assert.Equal(t, multitab.ModePerNamespace, p.Mode())
		assert.Equal(t, "per-namespace", p.Mode().String())
	})
}

func TestSingleBlob(t *testing.T) {
	t.Run("initial fetch replaces host state", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, multitab.Options{}, `{"count":0}`)
		require.NoError(t, a.host.Set("count", statetree.Int(3)))

		b := openTab(t, m, multitab.Options{}, `{"count":0}`)
		assert.True(t, b.session.Synced())
		assert.Equal(t, multitab.ModeSingleBlob, b.session.Mode())
		assert.Equal(t, `{"count":3}`, encode(t, b.host.State()))
	})

	t.Run("nothing stored keeps host state", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, multitab.Options{}, `{"count":7}`)
		assert.True(t, a.session.Synced())
		assert.Equal(t, `{"count":7}`, encode(t, a.host.State()))
	})

	t.Run("propagates selected paths and keeps local ones", func(t *testing.T) {
		m := memstore.NewMedium()
		opts := multitab.Options{StatesPaths: []string{"a.b"}}
		a := openTab(t, m, opts, `{"a":{"b":1,"c":2},"d":3}`)
		b := openTab(t, m, opts, `{"a":{"b":1,"c":20},"d":30}`)

		require.NoError(t, a.host.Set("a.b", statetree.Int(5)))
		assertEventuallyState(t, b.host, `{"a":{"b":5,"c":20},"d":30}`)

		require.NoError(t, a.host.Delete("a.b"))
		assertEventuallyState(t, b.host, `{"a":{"c":20},"d":30}`)

		// Unselected paths are never shared.
		require.NoError(t, a.host.Set("d", statetree.Int(99)))
		assertStaysState(t, b.host, `{"a":{"c":20},"d":30}`)
	})

	t.Run("syncs in both directions without echo", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, multitab.Options{}, "")
		b := openTab(t, m, multitab.Options{}, "")

		require.NoError(t, a.host.Set("x", statetree.Int(1)))
		assertEventuallyState(t, b.host, `{"x":1}`)

		require.NoError(t, b.host.Set("y", statetree.Int(2)))
		assertEventuallyState(t, a.host, `{"x":1,"y":2}`)

		// The last writer stays the owner of the blob: nobody re-saves what
		// it merely received.
		owner := string(b.store.Origin())
		assert.Never(t, func() bool {
			env := decode(t, m.Snapshot()[multitab.DefaultKey])
			id, _ := env.Get(statetree.MustPath("id")).AsString()
			return id != owner
		}, 150*time.Millisecond, 10*time.Millisecond)
	})

	t.Run("custom key", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, multitab.Options{Key: "app-state"}, "")
		require.NoError(t, a.host.Set("x", statetree.Int(1)))

		snap := m.Snapshot()
		assert.Contains(t, snap, "app-state")
		assert.NotContains(t, snap, multitab.DefaultKey)
	})
}

func TestVetoHooks(t *testing.T) {
	t.Run("before save veto writes nothing", func(t *testing.T) {
		m := memstore.NewMedium()
		calls := 0
		a := openTab(t, m, multitab.Options{
			OnBeforeSave: func(statetree.Value) statetree.Value {
				calls++
				return statetree.Null()
			},
		}, "")

		require.NoError(t, a.host.Set("x", statetree.Int(1)))
		assert.Equal(t, 1, calls)
		assert.Empty(t, m.Snapshot())
	})

	t.Run("before save transforms", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, multitab.Options{
			OnBeforeSave: func(v statetree.Value) statetree.Value {
				v.SetPath(statetree.MustPath("saved"), statetree.Bool(true))
				return v
			},
		}, "")
		b := openTab(t, m, multitab.Options{}, "")

		require.NoError(t, a.host.Set("x", statetree.Int(1)))
		assertEventuallyState(t, b.host, `{"x":1,"saved":true}`)
		// The hook works on a copy of the host state.
		assert.Equal(t, `{"x":1}`, encode(t, a.host.State()))
	})

	t.Run("before replace veto leaves host untouched", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, multitab.Options{}, "")
		require.NoError(t, a.host.Set("x", statetree.Int(1)))

		vetoed := make(chan struct{}, 8)
		b := openTab(t, m, multitab.Options{
			OnBeforeReplace: func(statetree.Value) statetree.Value {
				vetoed <- struct{}{}
				return statetree.Bool(false)
			},
		}, `{"mine":true}`)
		// The initial fetch was vetoed.
		require.Len(t, vetoed, 1)
		<-vetoed
		assert.Equal(t, `{"mine":true}`, encode(t, b.host.State()))

		require.NoError(t, a.host.Set("x", statetree.Int(2)))
		select {
		case <-vetoed:
		case <-time.After(time.Second):
			t.Fatal("hook not called for the remote change")
		}
		assertStaysState(t, b.host, `{"mine":true}`)
	})
}

func TestPerNamespace(t *testing.T) {
	opts := multitab.Options{SaveStoreIndividually: true}

	t.Run("index and namespaces are persisted", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, opts, "")
		assert.Equal(t, multitab.ModePerNamespace, a.session.Mode())

		require.NoError(t, a.host.Set("userA", decode(t, `{"name":"ada"}`)))
		require.NoError(t, a.host.Set("userB", decode(t, `{"name":"bob"}`)))

		snap := m.Snapshot()
		assert.Equal(t, `["userA","userB"]`, snap[broadcast.IndexKey])

		origin := string(a.store.Origin())
		assert.JSONEq(t, `{"id":"`+origin+`","storeState":{"name":"ada"}}`, snap[broadcast.NamespaceKey("userA")])
		assert.JSONEq(t, `{"id":"`+origin+`","storeState":{"name":"bob"}}`, snap[broadcast.NamespaceKey("userB")])
	})

	t.Run("initial composite", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, opts, "")
		require.NoError(t, a.host.Set("userA", decode(t, `{"name":"ada"}`)))

		b := openTab(t, m, opts, `{"local":1}`)
		assert.True(t, b.session.Synced())
		assert.Equal(t, `{"userA":{"name":"ada"}}`, encode(t, b.host.State()))
	})

	t.Run("empty index leaves host alone", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, opts, `{"local":1}`)
		assert.Equal(t, `{"local":1}`, encode(t, a.host.State()))
	})

	t.Run("changes and new namespaces propagate", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, opts, "")
		require.NoError(t, a.host.Set("userA", decode(t, `{"n":1}`)))

		b := openTab(t, m, opts, "")
		require.Equal(t, `{"userA":{"n":1}}`, encode(t, b.host.State()))

		require.NoError(t, a.host.Set("userA.n", statetree.Int(2)))
		assertEventuallyState(t, b.host, `{"userA":{"n":2}}`)

		// A namespace that did not exist when b installed.
		require.NoError(t, a.host.Set("userC", decode(t, `{"n":3}`)))
		assertEventuallyState(t, b.host, `{"userA":{"n":2},"userC":{"n":3}}`)

		require.NoError(t, b.host.Set("userC.n", statetree.Int(4)))
		assertEventuallyState(t, a.host, `{"userA":{"n":2},"userC":{"n":4}}`)
	})

	t.Run("removing the last namespace empties other contexts", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, opts, "")
		require.NoError(t, a.host.Set("userA", statetree.Int(1)))
		require.NoError(t, a.host.Set("userB", statetree.Int(2)))

		b := openTab(t, m, opts, "")
		require.Equal(t, `{"userA":1,"userB":2}`, encode(t, b.host.State()))

		require.NoError(t, a.host.Delete("userB"))
		assertEventuallyState(t, b.host, `{"userA":1}`)

		require.NoError(t, a.host.Delete("userA"))
		assert.Equal(t, `[]`, m.Snapshot()[broadcast.IndexKey])
		assertEventuallyState(t, b.host, `{}`)
	})

	t.Run("index save failure still saves namespaces", func(t *testing.T) {
		m := memstore.NewMedium()
		ctx := context.Background()

		b := m.Attach()
		store := broadcast.NewStore(indexFailingBackend{Backend: b})
		t.Cleanup(func() {
			store.Close()
			b.Close()
		})
		plugin, err := multitab.New(ctx, store, opts)
		require.NoError(t, err)
		host := container.New(statetree.Absent())
		session, err := plugin.Install(ctx, host)
		require.NoError(t, err)
		t.Cleanup(func() { session.Close() })

		require.NoError(t, host.Set("userA", decode(t, `{"name":"ada"}`)))

		snap := m.Snapshot()
		assert.NotContains(t, snap, broadcast.IndexKey)
		require.Contains(t, snap, broadcast.NamespaceKey("userA"))
		origin := string(store.Origin())
		assert.JSONEq(t, `{"id":"`+origin+`","storeState":{"name":"ada"}}`, snap[broadcast.NamespaceKey("userA")])
	})

	t.Run("selectors restrict namespaces", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, multitab.Options{SaveStoreIndividually: true, StatesPaths: []string{"shared"}}, "")

		require.NoError(t, a.host.Set("shared", decode(t, `{"v":1}`)))
		require.NoError(t, a.host.Set("private", decode(t, `{"v":2}`)))

		snap := m.Snapshot()
		assert.Equal(t, `["shared"]`, snap[broadcast.IndexKey])
		assert.NotContains(t, snap, broadcast.NamespaceKey("private"))
	})

	t.Run("malformed namespace is skipped", func(t *testing.T) {
		m := memstore.NewMedium()
		raw := m.Attach()
		t.Cleanup(func() { raw.Close() })
		ctx := context.Background()
		require.NoError(t, raw.Set(ctx, broadcast.IndexKey, `["good","bad"]`))
		require.NoError(t, raw.Set(ctx, broadcast.NamespaceKey("good"), `{"id":"x","storeState":{"ok":true}}`))
		require.NoError(t, raw.Set(ctx, broadcast.NamespaceKey("bad"), `{"id":`))

		b := openTab(t, m, opts, "")
		assert.Equal(t, `{"good":{"ok":true}}`, encode(t, b.host.State()))
	})

	t.Run("save veto writes nothing", func(t *testing.T) {
		m := memstore.NewMedium()
		a := openTab(t, m, multitab.Options{
			SaveStoreIndividually: true,
			OnBeforeSave:          func(statetree.Value) statetree.Value { return statetree.String("") },
		}, "")

		require.NoError(t, a.host.Set("userA", statetree.Int(1)))
		assert.Empty(t, m.Snapshot())
	})
}

func TestSessionClose(t *testing.T) {
	m := memstore.NewMedium()
	a := openTab(t, m, multitab.Options{}, "")
	b := openTab(t, m, multitab.Options{}, "")

	require.NoError(t, a.host.Set("x", statetree.Int(1)))
	assertEventuallyState(t, b.host, `{"x":1}`)

	require.NoError(t, b.session.Close())
	require.NoError(t, b.session.Close())

	require.NoError(t, a.host.Set("x", statetree.Int(2)))
	assertStaysState(t, b.host, `{"x":1}`)

	// b no longer saves either.
	before := m.Snapshot()[multitab.DefaultKey]
	require.NoError(t, b.host.Set("x", statetree.Int(3)))
	assert.Equal(t, before, m.Snapshot()[multitab.DefaultKey])
}
