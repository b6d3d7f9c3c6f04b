package currency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Cache stores exchange rates with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error
}

type memoryEntry struct {
	rate    decimal.Decimal
	expires time.Time
}

// MemoryCache is a per-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return decimal.Zero, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return decimal.Zero, false, nil
	}
	return e.rate, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{rate: rate, expires: c.now().Add(ttl)}
	return nil
}

// RedisCache shares rates between instances.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "checkout:fx:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("redis get: %w", err)
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, nil
	}
	return rate, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, rate.String(), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// NewCache picks Redis when a client is configured.
func NewCache(client *redis.Client) Cache {
	if client == nil {
		return NewMemoryCache()
	}
	return NewRedisCache(client)
}
