package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"es-query-studio/internal/common/logger"
)

// CachedConfigStore serves index config reads from Redis and falls through
// to the wrapped store on a miss or a cache failure. Environments carry
// cluster and database credentials and are always read from the wrapped
// store.
type CachedConfigStore struct {
	ConfigStore
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedConfigStore(inner ConfigStore, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedConfigStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedConfigStore{
		ConfigStore: inner,
		redis:       rdb,
		ttl:         ttl,
		logger:      log.WithFields(map[string]interface{}{"component": "config-cache"}),
	}
}

func indexConfigKey(environmentID, indexName string) string {
	return "idxcfg:" + environmentID + ":" + indexName
}

func (c *CachedConfigStore) DeleteEnvironment(ctx context.Context, id string) error {
	if err := c.ConfigStore.DeleteEnvironment(ctx, id); err != nil {
		return err
	}

	var keys []string
	iter := c.redis.Scan(ctx, 0, indexConfigKey(id, "*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("scan cached index configs failed", map[string]interface{}{
			"environmentId": id,
			"error":         err.Error(),
		})
	}
	if len(keys) > 0 {
		c.invalidate(ctx, keys...)
	}
	return nil
}

func (c *CachedConfigStore) GetIndexConfig(ctx context.Context, environmentID, indexName string) (*IndexConfig, error) {
	key := indexConfigKey(environmentID, indexName)
	var cfg IndexConfig
	if c.load(ctx, key, &cfg) {
		return &cfg, nil
	}

	got, err := c.ConfigStore.GetIndexConfig(ctx, environmentID, indexName)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, got)
	return got, nil
}

func (c *CachedConfigStore) SaveIndexConfig(ctx context.Context, cfg *IndexConfig) error {
	if err := c.ConfigStore.SaveIndexConfig(ctx, cfg); err != nil {
		return err
	}
	c.invalidate(ctx, indexConfigKey(cfg.EnvironmentID, cfg.IndexName))
	return nil
}

func (c *CachedConfigStore) load(ctx context.Context, key string, dst interface{}) bool {
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
		c.invalidate(ctx, key)
		return false
	}
	return true
}

func (c *CachedConfigStore) store(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (c *CachedConfigStore) invalidate(ctx context.Context, keys ...string) {
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{"keys": keys, "error": err.Error()})
	}
}
