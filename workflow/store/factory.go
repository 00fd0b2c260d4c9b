// Package store provides the persistent StatusStore backends.
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/config"
	"github.com/BaSui01/docflow/workflow"
)

// Store types
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeBadger = "badger"
)

// Store is a StatusStore with lifecycle hooks used by readiness checks and
// shutdown.
type Store interface {
	workflow.StatusStore
	Ping(ctx context.Context) error
	Close() error
}

type memoryStore struct {
	*workflow.MemoryStore
}

func (memoryStore) Ping(context.Context) error { return nil }
func (memoryStore) Close() error               { return nil }

// NewMemory wraps the in-process store.
func NewMemory() Store {
	return memoryStore{workflow.NewMemoryStore()}
}

// New builds the store selected by cfg.Type. client is required for redis.
func New(cfg config.StoreConfig, client *redis.Client, logger *zap.Logger) (Store, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return NewMemory(), nil
	case TypeRedis:
		if client == nil {
			return nil, fmt.Errorf("redis status store requires a redis client")
		}
		return NewRedisStore(client, cfg.KeyPrefix, cfg.TTL, logger), nil
	case TypeBadger:
		return OpenBadger(BadgerOptions{
			Path:   cfg.BadgerPath,
			Prefix: cfg.KeyPrefix,
			TTL:    cfg.TTL,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown status store type %q", cfg.Type)
	}
}
