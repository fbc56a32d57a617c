package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/linksync/internal/config"
	"github.com/andresuchdata/linksync/internal/domain"
)

const (
	runKeyPrefix     = "linksync:run:"
	runListKeyPrefix = "linksync:runs:"
)

// RunCache keeps recently read run status for polling clients.
type RunCache interface {
	GetRun(ctx context.Context, id string) (*domain.SyncRun, bool, error)
	SetRun(ctx context.Context, run *domain.SyncRun) error
	GetRunList(ctx context.Context, limit int) ([]*domain.SyncRun, bool, error)
	SetRunList(ctx context.Context, limit int, runs []*domain.SyncRun) error
	// Invalidate drops the run entry and every cached run list.
	Invalidate(ctx context.Context, id string) error
}

type redisRunCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopRunCache struct{}

func NewRunCache(cfg config.CacheConfig) (RunCache, error) {
	if !cfg.Enabled {
		return &noopRunCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisRunCache{client: client, ttl: ttl}, nil
}

func NewNoopRunCache() RunCache {
	return &noopRunCache{}
}

func (c *redisRunCache) GetRun(ctx context.Context, id string) (*domain.SyncRun, bool, error) {
	var run domain.SyncRun
	ok, err := c.get(ctx, runKey(id), &run)
	if !ok || err != nil {
		return nil, false, err
	}
	return &run, true, nil
}

func (c *redisRunCache) SetRun(ctx context.Context, run *domain.SyncRun) error {
	return c.set(ctx, runKey(run.ID), run)
}

func (c *redisRunCache) GetRunList(ctx context.Context, limit int) ([]*domain.SyncRun, bool, error) {
	var runs []*domain.SyncRun
	ok, err := c.get(ctx, runListKey(limit), &runs)
	if !ok || err != nil {
		return nil, false, err
	}
	return runs, true, nil
}

func (c *redisRunCache) SetRunList(ctx context.Context, limit int, runs []*domain.SyncRun) error {
	return c.set(ctx, runListKey(limit), runs)
}

func (c *redisRunCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, runKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return deleteKeysWithPrefix(ctx, c.client, runListKeyPrefix, scanBatchSize)
}

func (c *redisRunCache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode run cache: %w", err)
	}
	return true, nil
}

func (c *redisRunCache) set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode run cache: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopRunCache) GetRun(ctx context.Context, id string) (*domain.SyncRun, bool, error) {
	return nil, false, nil
}

func (n *noopRunCache) SetRun(ctx context.Context, run *domain.SyncRun) error {
	return nil
}

func (n *noopRunCache) GetRunList(ctx context.Context, limit int) ([]*domain.SyncRun, bool, error) {
	return nil, false, nil
}

func (n *noopRunCache) SetRunList(ctx context.Context, limit int, runs []*domain.SyncRun) error {
	return nil
}

func (n *noopRunCache) Invalidate(ctx context.Context, id string) error {
	return nil
}

func runKey(id string) string {
	return runKeyPrefix + id
}

func runListKey(limit int) string {
	return runListKeyPrefix + strconv.Itoa(limit)
}
