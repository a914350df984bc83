package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taipm/mission-decomposer/internal/model"
)

// RedisCache is a Redis-backed PathCache, letting DecompositionPath caches
// be shared across separate mission-decomposer processes running against
// the same domain (e.g. a fleet of planners). Adapted from the teacher's
// RedisCache (agent/cache_redis.go).
type RedisCache struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	statsLock  sync.RWMutex
	stats      Stats
}

// RedisCacheOptions configures a RedisCache connection.
type RedisCacheOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	KeyPrefix    string
	DefaultTTL   time.Duration
}

// NewRedisCache dials Redis and verifies connectivity before returning.
func NewRedisCache(opts RedisCacheOptions) (*RedisCache, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "mission-decomposer:tdg"
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		PoolSize:    opts.PoolSize,
		DialTimeout: opts.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return &RedisCache{client: client, prefix: opts.KeyPrefix, defaultTTL: opts.DefaultTTL}, nil
}

// newRedisCacheWithClient backs tests (and alternate UniversalClient setups)
// without dialing a real server.
func newRedisCacheWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "mission-decomposer:tdg"
	}
	return &RedisCache{client: client, prefix: prefix, defaultTTL: ttl}
}

func (c *RedisCache) key(k string) string { return c.prefix + ":" + k }

func (c *RedisCache) Get(ctx context.Context, key string) ([]model.DecompositionPath, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		c.recordMiss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var paths []model.DecompositionPath
	if err := json.Unmarshal(raw, &paths); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached decomposition paths: %w", err)
	}
	c.recordHit()
	return paths, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, paths []model.DecompositionPath, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("failed to encode decomposition paths: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis del failed: %w", err)
		}
	}
	return iter.Err()
}

func (c *RedisCache) Stats() Stats {
	c.statsLock.RLock()
	defer c.statsLock.RUnlock()
	return c.stats
}

func (c *RedisCache) recordHit() {
	c.statsLock.Lock()
	c.stats.Hits++
	c.statsLock.Unlock()
}

func (c *RedisCache) recordMiss() {
	c.statsLock.Lock()
	c.stats.Misses++
	c.statsLock.Unlock()
}
