package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SnapshotCache 快照缓存，由 internal/cache.Manager 实现
type SnapshotCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedFetcher 为拉取器叠加缓存，并合并同一仓库的并发拉取
type CachedFetcher struct {
	next   Fetcher
	cache  SnapshotCache
	ttl    time.Duration
	prefix string
	group  singleflight.Group
	logger *zap.Logger
}

// NewCachedFetcher 创建带缓存的拉取器
func NewCachedFetcher(next Fetcher, cache SnapshotCache, ttl time.Duration, logger *zap.Logger) *CachedFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		prefix: "docflow:repo:",
		logger: logger.With(zap.String("component", "repo_cache")),
	}
}

// cacheKey 携带令牌时按令牌摘要隔离，私有仓库内容不会被其他令牌读到
func (c *CachedFetcher) cacheKey(ref Ref, token string) string {
	key := c.prefix + ref.Host + "/" + ref.FullName()
	if token != "" {
		sum := sha256.Sum256([]byte(token))
		key += "@" + hex.EncodeToString(sum[:8])
	}
	return key
}

// Fetch 优先读缓存；未命中时拉取并回写，缓存故障不影响拉取
func (c *CachedFetcher) Fetch(ctx context.Context, ref Ref, opts FetchOptions) (*Snapshot, error) {
	key := c.cacheKey(ref, opts.Token)

	var cached Snapshot
	if err := c.cache.GetJSON(ctx, key, &cached); err == nil {
		c.logger.Debug("repository cache hit", zap.String("repository", ref.FullName()))
		return &cached, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		snap, err := c.next.Fetch(context.WithoutCancel(ctx), ref, opts)
		if err != nil {
			return nil, err
		}
		if err := c.cache.SetJSON(context.WithoutCancel(ctx), key, snap, c.ttl); err != nil {
			c.logger.Warn("repository cache write failed",
				zap.String("repository", ref.FullName()),
				zap.Error(err))
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap := *res.Val.(*Snapshot)
		snap.Files = append([]File(nil), snap.Files...)
		return &snap, nil
	}
}
