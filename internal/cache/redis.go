// Package cache provides an optional Redis-backed cache of normalized
// output, keyed by a digest of the input table and rule document bytes.
// Identical inputs with identical rules always produce identical
// output, so a hit skips the whole load/validate/apply pass.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/tablewash/tablewash/internal/config"
)

// Stats reports cache performance counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// ResultCache caches transformed CSV output in Redis.
type ResultCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *zap.Logger

	hits   int64
	misses int64
}

// New connects to Redis and verifies the connection.
func New(cfg config.CacheConfig, logger *zap.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	cache := &ResultCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := cache.client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("default_ttl", cfg.DefaultTTL))

	return cache, nil
}

// Digest computes the cache digest for a table/rules input pair.
func Digest(tableData, ruleData []byte) string {
	hasher := sha256.New()
	hasher.Write(tableData)
	hasher.Write([]byte{0})
	hasher.Write(ruleData)
	return hex.EncodeToString(hasher.Sum(nil))
}

// Get returns the cached output for a digest, if present. Lookup
// failures count as misses and never fail the run.
func (c *ResultCache) Get(ctx context.Context, digest string) (string, bool) {
	data, err := c.client.Get(ctx, c.key(digest)).Result()
	if err == redis.Nil {
		c.misses++
		c.logger.Debug("Cache miss", zap.String("digest", digest[:16]))
		return "", false
	} else if err != nil {
		c.misses++
		c.logger.Error("Cache lookup failed", zap.Error(err))
		return "", false
	}

	c.hits++
	c.logger.Debug("Cache hit", zap.String("digest", digest[:16]))
	return data, true
}

// Set stores output for a digest with the configured TTL.
func (c *ResultCache) Set(ctx context.Context, digest, output string) error {
	if err := c.client.Set(ctx, c.key(digest), output, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Error("Failed to cache result", zap.Error(err))
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Clear removes all cached results under the configured key prefix.
func (c *ResultCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+":result:*", 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Stats returns hit/miss counters for the process lifetime.
func (c *ResultCache) Stats() Stats {
	stats := Stats{Hits: c.hits, Misses: c.misses}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *ResultCache) key(digest string) string {
	return fmt.Sprintf("%s:result:%s", c.config.KeyPrefix, digest)
}

// maskRedisURL masks credentials in a Redis URL for logging.
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if idx := strings.LastIndex(userPart, ":"); idx > strings.Index(userPart, "//") {
				parts[0] = userPart[:idx] + ":***"
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
