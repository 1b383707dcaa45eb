package storage_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wim-maps/engine/internal/api"
	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/internal/storage"
	"github.com/wim-maps/engine/internal/storage/cache"
	gormstorage "github.com/wim-maps/engine/internal/storage/gorm"
	"github.com/wim-maps/engine/internal/storage/memory"
	sqlitestorage "github.com/wim-maps/engine/internal/storage/sqlite"
	"github.com/wim-maps/engine/pkg/core"
)

// Compile-time interface checks
var (
	_ storage.Backend = (*memory.Backend)(nil)
	_ storage.Backend = (*gormstorage.Backend)(nil)
	_ storage.Backend = (*sqlitestorage.Backend)(nil)
	_ storage.Source  = (*api.Client)(nil)
	_ storage.Source  = (*cache.Source)(nil)
)

func TestNewBackend(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{Type: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = storage.NewBackend(config.StorageConfig{Type: "sqlite"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &sqlitestorage.Backend{}, b)

	_, err = storage.NewBackend(config.StorageConfig{Type: "mongo"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type")
}

func TestNewSource_SqliteRoundTrip(t *testing.T) {
	src, closeFn, err := storage.NewSource(config.StorageConfig{Type: "sqlite"}, config.APIConfig{}, config.CacheConfig{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	w, ok := src.(storage.Writer)
	require.True(t, ok)

	ctx := context.Background()
	m := &core.Map{Title: "Campus", ImageURL: "campus.png", NativeWidth: 20, NativeHeight: 10}
	require.NoError(t, w.SaveMap(ctx, m))

	d, err := src.GetMapData(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, d.Width)
}

func TestNewSource_API(t *testing.T) {
	src, closeFn, err := storage.NewSource(config.StorageConfig{Type: "api"}, config.APIConfig{BaseURL: "http://localhost"}, config.CacheConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &api.Client{}, src)
	assert.NoError(t, closeFn())
}

func TestNewSource_UnreachableCacheIsSkipped(t *testing.T) {
	src, closeFn, err := storage.NewSource(
		config.StorageConfig{Type: "memory"},
		config.APIConfig{},
		config.CacheConfig{Enabled: true, Address: "localhost:1"},
		zerolog.Nop(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	assert.IsType(t, &memory.Backend{}, src)
}
