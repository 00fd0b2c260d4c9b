package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/internal/cache"
)

type countingFetcher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context, ref Ref, opts FetchOptions) (*Snapshot, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Snapshot{Ref: ref, Files: []File{{Path: "a.go", Content: "package a // " + opts.Token}}, Source: "counting"}, nil
}

func newCacheManager(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	mr := miniredis.RunT(t)
	m, err := cache.NewManager(cache.Config{Addr: mr.Addr(), DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestCachedFetcher_HitAfterMiss(t *testing.T) {
	mr, m := newCacheManager(t)
	next := &countingFetcher{}
	f := NewCachedFetcher(next, m, 10*time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := f.Fetch(ctx, widgets, FetchOptions{})
	require.NoError(t, err)
	second, err := f.Fetch(ctx, widgets, FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, first.Files, second.Files)
	assert.Equal(t, 10*time.Minute, mr.TTL("docflow:repo:github.com/acme/widgets"))

	mr.FastForward(11 * time.Minute)
	_, err = f.Fetch(ctx, widgets, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load(), "expired entry is refetched")
}

func TestCachedFetcher_TokenIsolatesEntries(t *testing.T) {
	_, m := newCacheManager(t)
	next := &countingFetcher{}
	f := NewCachedFetcher(next, m, time.Minute, nil)
	ctx := context.Background()

	pub, err := f.Fetch(ctx, widgets, FetchOptions{})
	require.NoError(t, err)
	priv, err := f.Fetch(ctx, widgets, FetchOptions{Token: "secret"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
	assert.NotEqual(t, pub.Files[0].Content, priv.Files[0].Content)
	assert.NotContains(t, f.cacheKey(widgets, "secret"), "secret")
}

func TestCachedFetcher_CoalescesConcurrentFetches(t *testing.T) {
	_, m := newCacheManager(t)
	next := &countingFetcher{delay: 50 * time.Millisecond}
	f := NewCachedFetcher(next, m, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := f.Fetch(context.Background(), widgets, FetchOptions{})
			if assert.NoError(t, err) {
				assert.Len(t, snap.Files, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedFetcher_ErrorsAreNotCached(t *testing.T) {
	_, m := newCacheManager(t)
	next := &countingFetcher{err: errors.New("github down")}
	f := NewCachedFetcher(next, m, time.Minute, nil)

	_, err := f.Fetch(context.Background(), widgets, FetchOptions{})
	assert.EqualError(t, err, "github down")
	_, err = f.Fetch(context.Background(), widgets, FetchOptions{})
	assert.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedFetcher_CacheOutageFallsThrough(t *testing.T) {
	mr, m := newCacheManager(t)
	next := &countingFetcher{}
	f := NewCachedFetcher(next, m, time.Minute, nil)
	mr.Close()

	snap, err := f.Fetch(context.Background(), widgets, FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, snap.Files, 1)
}
