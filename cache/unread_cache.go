package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-service/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	UnreadCachePrefix = "notifications:unread:v"
	UnreadVersionKey  = "notifications:unread:version"
	DefaultUnreadTTL  = 30 * time.Second
)

// redisClient is the subset of *redis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisUnreadCache stores the unread summary under a versioned key. Bumping
// the version orphans every summary computed before the bump, so a stale
// summary is never served once Invalidate has returned.
type RedisUnreadCache struct {
	redis  redisClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisUnreadCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisUnreadCache {
	return newRedisUnreadCache(client, ttl, logger)
}

func newRedisUnreadCache(client redisClient, ttl time.Duration, logger *zap.Logger) *RedisUnreadCache {
	if ttl <= 0 {
		ttl = DefaultUnreadTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisUnreadCache{redis: client, ttl: ttl, logger: logger}
}

// Version returns the current cache generation, seeding it on first use.
func (c *RedisUnreadCache) Version(ctx context.Context) (int64, error) {
	version, err := c.redis.Get(ctx, UnreadVersionKey).Int64()
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("read unread cache version: %w", err)
	}

	if err := c.redis.SetNX(ctx, UnreadVersionKey, 1, 0).Err(); err != nil {
		return 0, fmt.Errorf("seed unread cache version: %w", err)
	}
	version, err = c.redis.Get(ctx, UnreadVersionKey).Int64()
	if err != nil {
		return 0, fmt.Errorf("read unread cache version: %w", err)
	}
	return version, nil
}

// Get returns the summary cached for version, or false on a miss.
func (c *RedisUnreadCache) Get(ctx context.Context, version int64) (*models.UnreadSummary, bool) {
	data, err := c.redis.Get(ctx, key(version)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read unread summary from cache", zap.Error(err))
		}
		return nil, false
	}

	var summary models.UnreadSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		c.logger.Warn("Failed to unmarshal cached unread summary", zap.Error(err))
		return nil, false
	}
	return &summary, true
}

func (c *RedisUnreadCache) Set(ctx context.Context, version int64, summary *models.UnreadSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		c.logger.Warn("Failed to marshal unread summary for cache", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key(version), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache unread summary", zap.Error(err), zap.Int64("version", version))
	}
}

// Invalidate bumps the version.
func (c *RedisUnreadCache) Invalidate(ctx context.Context) error {
	newVersion, err := c.redis.Incr(ctx, UnreadVersionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate unread cache: %w", err)
	}
	c.logger.Debug("Unread cache invalidated", zap.Int64("new_version", newVersion))
	return nil
}

func key(version int64) string {
	return fmt.Sprintf("%s%d", UnreadCachePrefix, version)
}
