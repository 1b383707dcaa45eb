package sqlitestorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/internal/database"
	gormstorage "github.com/wim-maps/engine/internal/storage/gorm"
	"github.com/wim-maps/engine/pkg/core"
)

func TestBackend_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps.db")
	b, err := New(config.SQLiteConfig{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	ctx := context.Background()
	m := &core.Map{Title: "Campus", ImageURL: "campus.png", NativeWidth: 20, NativeHeight: 10}
	require.NoError(t, b.SaveMap(ctx, m))
	require.NoError(t, b.Close())

	reopened, err := New(config.SQLiteConfig{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, reopened.Init())
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetMap(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Campus", got.Title)
}

func TestBackend_PeriodicDump(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "snapshot.db")
	b, err := New(config.SQLiteConfig{DumpPath: dump, DumpInterval: 20 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	m := &core.Map{Title: "Harbour", ImageURL: "harbour.png", NativeWidth: 20, NativeHeight: 10}
	require.NoError(t, b.SaveMap(context.Background(), m))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Close())

	db, err := database.GetSqliteDB(dump)
	require.NoError(t, err)
	var rec gormstorage.MapRecord
	require.NoError(t, db.First(&rec, m.ID).Error)
	assert.Equal(t, "Harbour", rec.Title)
}

func TestBackend_CloseTwice(t *testing.T) {
	b, err := New(config.SQLiteConfig{}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
	assert.NotPanics(t, func() { _ = b.Close() })
}
