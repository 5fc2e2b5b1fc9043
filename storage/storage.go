// Package storage builds the client-local key/value store selected by
// configuration: in-memory, a SQLite file, or Redis.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/itsneelabh/storefront/core"
)

// Store is a core.Memory that owns resources released by Close.
type Store interface {
	core.Memory
	io.Closer
}

// Open returns the store for cfg.Provider.
func Open(ctx context.Context, cfg core.StorageConfig, logger core.Logger) (Store, error) {
	logger = core.ComponentLogger(logger, "storefront/storage")

	switch cfg.Provider {
	case "", "inmemory":
		store := core.NewMemoryStore()
		store.SetLogger(logger)
		return store, nil
	case "sqlite":
		store, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		// expired rows from earlier runs would otherwise stay on disk
		removed, err := store.PurgeExpired(ctx)
		if err != nil {
			logger.Warn("Failed to purge expired entries", map[string]interface{}{
				"error": err.Error(),
			})
		} else if removed > 0 {
			logger.Info("Purged expired entries", map[string]interface{}{
				"removed": removed,
			})
		}
		return store, nil
	case "redis":
		return core.NewRedisStore(ctx, core.RedisStoreOptions{
			RedisURL:  cfg.RedisURL,
			Namespace: cfg.Namespace,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("unknown storage provider %q: %w", cfg.Provider, core.ErrInvalidConfiguration)
	}
}
