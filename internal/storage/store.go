package storage

import (
	"context"
	"fmt"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/pkg/kvstore"
	"github.com/achlys/whimsical-backend/pkg/logger"
	redisclient "github.com/achlys/whimsical-backend/pkg/redis"
)

// Store is an opened key-value backend and whatever must be released with it.
type Store struct {
	kvstore.Store
	Backend string

	closer func() error
}

// Close releases the backend. It is safe to call on a memory store.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Open opens the backend selected by cfg.Store.
func Open(ctx context.Context, cfg config.CartConfig, redisCfg config.RedisConfig) (*Store, error) {
	switch cfg.Store {
	case config.StorePebble:
		db, err := kvstore.NewPebbleStore(cfg.PebbleDir)
		if err != nil {
			return nil, fmt.Errorf("open pebble store at %s: %w", cfg.PebbleDir, err)
		}
		logger.Info("Opened pebble store", map[string]interface{}{"dir": cfg.PebbleDir})
		return &Store{Store: db, Backend: config.StorePebble, closer: db.Close}, nil

	case config.StoreRedis:
		client, err := redisclient.Connect(ctx, &redisCfg)
		if err != nil {
			return nil, err
		}
		return &Store{
			Store:   kvstore.NewRedisStore(client, cfg.SnapshotTTL),
			Backend: config.StoreRedis,
			closer:  client.Close,
		}, nil

	case config.StoreMemory, "":
		logger.Warn("Using in-memory store; carts are lost on restart")
		return &Store{Store: kvstore.NewMemoryStore(), Backend: config.StoreMemory}, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}
