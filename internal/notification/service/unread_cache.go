package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"famlink/pkg/domain"
)

// UnreadCache shortcuts the unread-existence query. It is an optimization
// only: a miss or an unreachable backend falls through to the store and
// correctness never depends on it.
type UnreadCache interface {
	Get(ctx context.Context, owner domain.UserID) (has bool, ok bool)
	Set(ctx context.Context, owner domain.UserID, has bool)
	Invalidate(ctx context.Context, owner domain.UserID)
}

type noopCache struct{}

func (noopCache) Get(context.Context, domain.UserID) (bool, bool) { return false, false }
func (noopCache) Set(context.Context, domain.UserID, bool)        {}
func (noopCache) Invalidate(context.Context, domain.UserID)       {}

const (
	unreadKeyPrefix = "notice:unread:"
	unreadCacheTTL  = 30 * time.Second
)

// RedisUnreadCache caches the per-owner unread flag in Redis with a short
// TTL. Invalidated on every append and on every read-marking path.
type RedisUnreadCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisUnreadCache constructs a Redis-backed unread cache.
func NewRedisUnreadCache(client *redis.Client, logger *slog.Logger) *RedisUnreadCache {
	return &RedisUnreadCache{client: client, logger: logger}
}

func (c *RedisUnreadCache) Get(ctx context.Context, owner domain.UserID) (bool, bool) {
	val, err := c.client.Get(ctx, unreadKeyPrefix+owner.String()).Result()
	if errors.Is(err, redis.Nil) {
		return false, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "unread cache read failed", "error", err)
		return false, false
	}
	return val == "1", true
}

func (c *RedisUnreadCache) Set(ctx context.Context, owner domain.UserID, has bool) {
	val := "0"
	if has {
		val = "1"
	}
	if err := c.client.Set(ctx, unreadKeyPrefix+owner.String(), val, unreadCacheTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "unread cache write failed", "error", err)
	}
}

func (c *RedisUnreadCache) Invalidate(ctx context.Context, owner domain.UserID) {
	if err := c.client.Del(ctx, unreadKeyPrefix+owner.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "unread cache invalidation failed", "error", err)
	}
}
