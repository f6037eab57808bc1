package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestPersister opens a database in a temp dir.
func createTestPersister(t *testing.T) (*Persister, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "multitab.db")
	p, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, path
}

func TestPersisterRoundTrip(t *testing.T) {
	p, _ := createTestPersister(t)
	ctx := context.Background()

	require.NoError(t, p.Put(ctx, "a", "1"))
	require.NoError(t, p.Put(ctx, "b", "2"))
	require.NoError(t, p.Put(ctx, "a", "3"))
	require.NoError(t, p.Delete(ctx, "b"))
	require.NoError(t, p.Delete(ctx, "missing"))

	data, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "3"}, data)
}

func TestMediumSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "multitab.db")

	m, p, err := OpenMedium(ctx, path)
	require.NoError(t, err)
	require.NoError(t, m.Attach().Set(ctx, "vuex-multi-tab", `{"id":"x","state":{}}`))
	require.NoError(t, p.Close())

	m2, p2, err := OpenMedium(ctx, path)
	require.NoError(t, err)
	defer p2.Close()

	val, ok, err := m2.Attach().Get(ctx, "vuex-multi-tab")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"x","state":{}}`, val)
}

func TestOpenFailsOnBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing-dir", "db.sqlite"))
	assert.Error(t, err)
}
