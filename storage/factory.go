package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/docflow/config"
	"github.com/BaSui01/docflow/internal/database"
)

// Backend names
const (
	BackendNone     = "none"
	BackendDatabase = "database"
	BackendMongo    = "mongo"
)

// Open 按 artifacts.backend 创建存储，none 返回 nil
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Artifacts.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendDatabase:
		pool, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		// sqlite 用于单机与开发，直接建表
		store, err := NewGormStore(pool, GormOptions{AutoMigrate: cfg.Database.Driver == "sqlite"}, logger)
		if err != nil {
			_ = pool.Close()
			return nil, err
		}
		return store, nil
	case BackendMongo:
		return OpenMongo(ctx, cfg.Mongo, logger)
	default:
		return nil, fmt.Errorf("storage: unknown artifacts backend %q", cfg.Artifacts.Backend)
	}
}
