package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/multitab/internal/config"
)

func TestInitialize(t *testing.T) {
	t.Run("fresh initialization", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, Initialize(dir, false))

		cfg, err := config.Load(filepath.Join(dir, "multitab.yml"))
		require.NoError(t, err)
		assert.Equal(t, config.DriverRedis, cfg.Backend.Driver)
		assert.Equal(t, "vuex-multi-tab", cfg.Sync.Key)
		assert.Empty(t, cfg.Sync.StatesPaths)
		assert.Empty(t, cfg.Hooks.BeforeSave)
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "multitab.yml")
		require.NoError(t, os.WriteFile(path, []byte("old content"), 0644))

		err := Initialize(dir, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "project already initialized")
		assert.Contains(t, err.Error(), "multitab init --force")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "old content", string(content))
	})

	t.Run("force replaces existing file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "multitab.yml")
		require.NoError(t, os.WriteFile(path, []byte("old content"), 0644))

		require.NoError(t, Initialize(dir, true))

		_, err := config.Load(path)
		require.NoError(t, err)
	})
}

func TestCheckExisting(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckExisting(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "multitab.yml"), []byte("x"), 0644))
	assert.Error(t, CheckExisting(dir))
}
