package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr := miniredis.RunT(t)

	cfg := Config{
		Addr:       mr.Addr(),
		DefaultTTL: time.Minute,
	}
	manager, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager(t *testing.T) {
	_, manager := setupTestRedis(t)
	assert.NotNil(t, manager.Client())
}

func TestNewManager_ConnectionFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(Config{Addr: addr}, nil)
	assert.Error(t, err)
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", 0))
	value, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	// default TTL applied
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestManager_Miss(t *testing.T) {
	_, manager := setupTestRedis(t)

	value, err := manager.Get(context.Background(), "absent")
	assert.True(t, IsCacheMiss(err))
	assert.Empty(t, value)
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Files int    `json:"files"`
	}
	require.NoError(t, manager.SetJSON(ctx, "snap", payload{Name: "widgets", Files: 3}, time.Minute))

	var got payload
	require.NoError(t, manager.GetJSON(ctx, "snap", &got))
	assert.Equal(t, payload{Name: "widgets", Files: 3}, got)

	require.NoError(t, manager.Set(ctx, "broken", "{not json", time.Minute))
	assert.Error(t, manager.GetJSON(ctx, "broken", &got))
}

func TestManager_DeleteExistsExpire(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, manager.Set(ctx, "b", "2", time.Minute))

	n, err := manager.Exists(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, manager.Expire(ctx, "a", time.Second))
	mr.FastForward(2 * time.Second)
	_, err = manager.Get(ctx, "a")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, manager.Delete(ctx, "b"))
	n, err = manager.Exists(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close(), "close is idempotent")

	ctx := context.Background()
	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "k", "v", 0), ErrClosed)
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
}

func TestParseInfo(t *testing.T) {
	info := "# Stats\r\nkeyspace_hits:30\r\nkeyspace_misses:10\r\n# Memory\r\nused_memory:2048\r\n# Clients\r\nconnected_clients:4\r\n"
	stats := parseInfo(info)
	assert.Equal(t, uint64(30), stats.Hits)
	assert.Equal(t, uint64(10), stats.Misses)
	assert.InDelta(t, 0.75, stats.HitRate, 1e-9)
	assert.Equal(t, int64(2048), stats.UsedMemory)
	assert.Equal(t, 4, stats.Connections)
}

func TestFromRedisConfig(t *testing.T) {
	cfg := FromRedisConfig(config.RedisConfig{Addr: "redis:6379", DB: 2, PoolSize: 20})
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 20, cfg.PoolSize)
	assert.Equal(t, DefaultConfig().MinIdleConns, cfg.MinIdleConns)
}
