package cache

import (
	"context"
	"errors"
	"time"

	"cryptotracker/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"endpoint", "instance"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"endpoint", "instance"},
	)
)

func init() {
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
}

// Cache is the Redis-backed response/price cache shared by the API
// handlers and the market-data client. It is constructed once at
// process start and passed to everything that needs it.
type Cache struct {
	rdb      *redis.Client
	instance string
}

// New connects to Redis and verifies the connection.
func New(addr, instance string) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &Cache{rdb: rdb, instance: instance}, nil
}

// Client exposes the underlying Redis client for redis_rate.
func (c *Cache) Client() *redis.Client {
	return c.rdb
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Get returns the cached value for key, or "" on a miss. Expiry is
// handled by Redis TTLs, so a stale entry is simply absent.
func (c *Cache) Get(ctx context.Context, key, endpoint string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		cacheMissesTotal.WithLabelValues(endpoint, c.instance).Inc()
		return "", nil
	}
	if err != nil {
		return "", err
	}
	cacheHitsTotal.WithLabelValues(endpoint, c.instance).Inc()
	return val, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// InvalidateByPrefix deletes every key matching prefix. Used by write
// handlers to drop cached browse responses.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix, endpoint string) {
	keys, err := c.getAllKeys(ctx, prefix)
	if err != nil {
		logger.Log.Error("Failed to get cache keys for invalidation",
			zap.String("prefix", prefix),
			zap.String("endpoint", endpoint),
			zap.String("instance", c.instance),
			zap.Error(err),
		)
		return
	}

	invalidatedCount := 0
	for _, key := range keys {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			logger.Log.Warn("Failed to invalidate cache key",
				zap.String("key", key),
				zap.String("prefix", prefix),
				zap.Error(err),
			)
		} else {
			invalidatedCount++
		}
	}

	logger.Log.Info("Cache invalidation completed",
		zap.String("prefix", prefix),
		zap.String("endpoint", endpoint),
		zap.String("instance", c.instance),
		zap.Int("invalidated_keys", invalidatedCount),
	)
}

// Retrieve all keys matching a prefix from Redis
func (c *Cache) getAllKeys(ctx context.Context, prefix string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		foundKeys, nextCursor, err := c.rdb.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return nil, err
		}

		keys = append(keys, foundKeys...)
		cursor = nextCursor

		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
