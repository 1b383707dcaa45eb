// internal/storage/factory.go
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wim-maps/engine/internal/api"
	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/internal/database"
	"github.com/wim-maps/engine/internal/storage/cache"
	gormstorage "github.com/wim-maps/engine/internal/storage/gorm"
	"github.com/wim-maps/engine/internal/storage/memory"
	sqlitestorage "github.com/wim-maps/engine/internal/storage/sqlite"
)

// NewBackend creates a writable storage backend based on configuration.
// The backend is not initialized; call Init before use.
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		m := database.NewManager(log)
		if err := m.Connect(cfg); err != nil {
			return nil, err
		}
		return gormstorage.New(gormstorage.Dependencies{DB: m.DB, Logger: log}), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, log)
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewSource creates the read side used by viewers and editors. Besides the
// backend types it accepts "api" for a remote REST store. When caching is
// enabled the source is wrapped in a redis read-through cache. The returned
// close function releases everything that was opened.
func NewSource(cfg config.StorageConfig, apiCfg config.APIConfig, cacheCfg config.CacheConfig, log zerolog.Logger) (Source, func() error, error) {
	var (
		src     Source
		closers []func() error
	)

	if cfg.Type == "api" {
		src = api.New(apiCfg.BaseURL, apiCfg.AjaxURL, apiCfg.Nonce, apiCfg.Timeout)
	} else {
		b, err := NewBackend(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		if err := b.Init(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Type, err)
		}
		src = b
		closers = append(closers, b.Close)
	}

	if cacheCfg.Enabled {
		r := cache.NewRedis(cacheCfg)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := r.Ping(ctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("address", cacheCfg.Address).Msg("Redis unreachable, continuing without cache")
			_ = r.Close()
		} else {
			src = cache.NewSource(src, r, cacheCfg.TTL, log)
			closers = append(closers, r.Close)
		}
	}

	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return src, closeAll, nil
}
