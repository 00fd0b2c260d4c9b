package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/repo"
)

// outcome 将错误归类为指标状态
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// =============================================================================
// 🤖 内容生成
// =============================================================================

type instrumentedProvider struct {
	llm.ContentProvider
	c *Collector
}

// InstrumentProvider 为内容生成服务叠加调用指标
func InstrumentProvider(p llm.ContentProvider, c *Collector) llm.ContentProvider {
	if c == nil {
		return p
	}
	return &instrumentedProvider{ContentProvider: p, c: c}
}

func (p *instrumentedProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.Completion, error) {
	start := time.Now()
	out, err := p.ContentProvider.Generate(ctx, req)
	var prompt, completion int
	if out != nil {
		prompt, completion = out.PromptTokens, out.CompletionTokens
	}
	p.c.RecordGeneration(p.Name(), req.Task, outcome(err), time.Since(start), prompt, completion)
	return out, err
}

// =============================================================================
// 📦 仓库拉取
// =============================================================================

type instrumentedFetcher struct {
	next repo.Fetcher
	c    *Collector
}

// InstrumentFetcher 为仓库拉取器叠加指标
func InstrumentFetcher(f repo.Fetcher, c *Collector) repo.Fetcher {
	if c == nil {
		return f
	}
	return &instrumentedFetcher{next: f, c: c}
}

func (f *instrumentedFetcher) Fetch(ctx context.Context, ref repo.Ref, opts repo.FetchOptions) (*repo.Snapshot, error) {
	start := time.Now()
	snap, err := f.next.Fetch(ctx, ref, opts)
	source, files := "unknown", 0
	if snap != nil {
		source, files = snap.Source, len(snap.Files)
	}
	f.c.RecordFetch(source, outcome(err), time.Since(start), files)
	return snap, err
}

// =============================================================================
// 💾 快照缓存
// =============================================================================

type instrumentedCache struct {
	next      repo.SnapshotCache
	c         *Collector
	cacheType string
}

// InstrumentCache 记录快照缓存的命中与未命中
func InstrumentCache(cache repo.SnapshotCache, c *Collector, cacheType string) repo.SnapshotCache {
	if c == nil {
		return cache
	}
	return &instrumentedCache{next: cache, c: c, cacheType: cacheType}
}

func (ic *instrumentedCache) GetJSON(ctx context.Context, key string, dest any) error {
	err := ic.next.GetJSON(ctx, key, dest)
	if err != nil {
		ic.c.RecordCacheMiss(ic.cacheType)
	} else {
		ic.c.RecordCacheHit(ic.cacheType)
	}
	return err
}

func (ic *instrumentedCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	return ic.next.SetJSON(ctx, key, value, ttl)
}
