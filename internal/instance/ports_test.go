package instance

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	dockerpkg "github.com/dyluth/multitab/internal/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLister returns a fixed container list and records the filters used
type fakeLister struct {
	containers []types.Container
	err        error
	opts       container.ListOptions
}

func (f *fakeLister) ContainerList(_ context.Context, opts container.ListOptions) ([]types.Container, error) {
	f.opts = opts
	return f.containers, f.err
}

func allBindable(int) bool { return true }

func TestFindPort(t *testing.T) {
	ctx := context.Background()

	t.Run("returns 6379 when no ports used", func(t *testing.T) {
		lister := &fakeLister{}
		port, err := findPort(ctx, lister, allBindable)
		require.NoError(t, err)
		assert.Equal(t, 6379, port)

		assert.True(t, lister.opts.All)
		assert.True(t, lister.opts.Filters.ExactMatch("label", "multitab.project=true"))
		assert.True(t, lister.opts.Filters.ExactMatch("label", "multitab.component=redis"))
	})

	t.Run("skips ports used by Docker containers", func(t *testing.T) {
		lister := &fakeLister{containers: []types.Container{
			{Labels: map[string]string{dockerpkg.LabelRedisPort: "6379"}},
			{Labels: map[string]string{dockerpkg.LabelRedisPort: "6380"}},
			{Labels: map[string]string{dockerpkg.LabelRedisPort: "not-a-port"}},
		}}
		port, err := findPort(ctx, lister, allBindable)
		require.NoError(t, err)
		assert.Equal(t, 6381, port)
	})

	t.Run("skips ports that are not bindable", func(t *testing.T) {
		port, err := findPort(ctx, &fakeLister{}, func(p int) bool { return p > 6385 })
		require.NoError(t, err)
		assert.Equal(t, 6386, port)
	})

	t.Run("exhausted range", func(t *testing.T) {
		_, err := findPort(ctx, &fakeLister{}, func(int) bool { return false })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "range 6379-6478 exhausted")
	})

	t.Run("docker error", func(t *testing.T) {
		_, err := findPort(ctx, &fakeLister{err: errors.New("daemon gone")}, allBindable)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query Docker containers")
	})
}

func TestIsPortBindable(t *testing.T) {
	t.Run("returns true for available port", func(t *testing.T) {
		listener, err := net.Listen("tcp", "localhost:0")
		require.NoError(t, err)
		port := listener.Addr().(*net.TCPAddr).Port
		listener.Close()

		require.True(t, isPortBindable(port))
	})

	t.Run("returns false for port in use", func(t *testing.T) {
		listener, err := net.Listen("tcp", "localhost:0")
		require.NoError(t, err)
		defer listener.Close()

		port := listener.Addr().(*net.TCPAddr).Port
		require.False(t, isPortBindable(port))
	})
}
