package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/workflow"
)

// =============================================================================
// 🗄️ Redis StatusStore
// =============================================================================

// RedisStore keeps one JSON snapshot per key and a sorted-set index scored by
// creation time.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a RedisStore on an existing client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "redis_status_store")),
	}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) indexKey() string { return s.prefix + "index" }

func (s *RedisStore) cancelKey(id string) string { return s.prefix + "cancel:" + id }

// cancelRequestTTL bounds a request when snapshots never expire.
const cancelRequestTTL = 24 * time.Hour

// Put replaces the snapshot and refreshes the index entry.
func (s *RedisStore) Put(ctx context.Context, wf *workflow.Workflow) error {
	data, err := encode(wf)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(wf.ID), data, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(wf.CreatedAt.UnixNano()),
			Member: wf.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put workflow %s: %w", wf.ID, err)
	}
	return nil
}

// Get returns the snapshot for id.
func (s *RedisStore) Get(ctx context.Context, id string) (*workflow.Workflow, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, workflow.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get workflow %s: %w", id, err)
	}
	return decode(data)
}

// List returns all live snapshots ordered by creation time. Index entries
// whose snapshot has expired are pruned.
func (s *RedisStore) List(ctx context.Context) ([]*workflow.Workflow, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list workflows: %w", err)
	}
	if len(ids) == 0 {
		return []*workflow.Workflow{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list workflows: %w", err)
	}

	out := make([]*workflow.Workflow, 0, len(vals))
	var stale []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		wf, err := decode([]byte(str))
		if err != nil {
			s.logger.Warn("skipping undecodable snapshot", zap.String("workflow_id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, wf)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.logger.Warn("failed to prune workflow index", zap.Error(err))
		}
	}
	workflow.SortByCreated(out)
	return out, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error { return nil }

// RequestCancel flags id for the replica that owns the run.
func (s *RedisStore) RequestCancel(ctx context.Context, id string) error {
	ttl := s.ttl
	if ttl <= 0 {
		ttl = cancelRequestTTL
	}
	if err := s.client.Set(ctx, s.cancelKey(id), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis request cancel %s: %w", id, err)
	}
	return nil
}

// CancelRequested reports whether a stop was recorded for id.
func (s *RedisStore) CancelRequested(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.cancelKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis cancel flag %s: %w", id, err)
	}
	return n > 0, nil
}
