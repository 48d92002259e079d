package utils

import (
	"DedupVault/internal/repo"
	"DedupVault/model"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis cache client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
	}
}

// Get reads a cached value.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// Set writes a cached value.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, string(data), expiration).Err()
}

// Delete removes a cache entry.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Exists checks whether a cache key exists.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type CacheManager struct {
	cache Cache
}

var globalCacheManager *CacheManager
var cacheManagerOnce sync.Once

// InitCacheManager initializes the cache manager.
func InitCacheManager() {
	cacheManagerOnce.Do(func() {
		if repo.Redis == nil {
			return
		}
		globalCacheManager = &CacheManager{
			cache: NewRedisCache(repo.Redis),
		}
	})
}

// GetCacheManager returns the cache manager, or nil when Redis is not
// configured. Callers treat nil as a cache miss.
func GetCacheManager() *CacheManager {
	if globalCacheManager == nil {
		InitCacheManager()
	}
	return globalCacheManager
}

// BuildCacheKey builds a cache key.
func BuildCacheKey(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key += fmt.Sprintf(":%v", param)
	}
	return key
}

const (
	CacheKeyContentObject = "content:object"
)

// GetContentObjectFromCache reads a cached content row by fingerprint.
func GetContentObjectFromCache(ctx context.Context, fingerprint string) (*model.ContentObject, bool) {
	manager := GetCacheManager()
	if manager == nil {
		return nil, false
	}
	key := BuildCacheKey(CacheKeyContentObject, fingerprint)

	var result model.ContentObject
	if err := manager.cache.Get(ctx, key, &result); err != nil {
		return nil, false
	}

	return &result, true
}

// SetContentObjectToCache writes a cached content row.
func SetContentObjectToCache(ctx context.Context, fingerprint string, data *model.ContentObject, expiration time.Duration) error {
	manager := GetCacheManager()
	if manager == nil {
		return nil
	}
	key := BuildCacheKey(CacheKeyContentObject, fingerprint)
	return manager.cache.Set(ctx, key, data, expiration)
}

// InvalidateContentObjectCache clears a cached content row.
func InvalidateContentObjectCache(ctx context.Context, fingerprint string) error {
	manager := GetCacheManager()
	if manager == nil {
		return nil
	}
	key := BuildCacheKey(CacheKeyContentObject, fingerprint)
	return manager.cache.Delete(ctx, key)
}
