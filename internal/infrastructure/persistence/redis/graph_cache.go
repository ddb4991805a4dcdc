package redis

import (
	"context"

	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FOLLOW LIST CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ListCache implements graph.ListCache over Redis. All methods are best
// effort: errors are logged and reported as misses so readers fall
// through to the store.
type ListCache struct {
	cache *Cache
	log   *logger.Logger
}

// NewListCache creates a ListCache.
func NewListCache(cache *Cache, log *logger.Logger) *ListCache {
	return &ListCache{
		cache: cache,
		log:   log.With(logger.Component("list_cache")),
	}
}

// GetFollowing returns the cached following IDs for ownerID.
func (c *ListCache) GetFollowing(ctx context.Context, ownerID string) ([]string, bool) {
	return c.getIDs(ctx, PrefixFollowing+ownerID)
}

// SetFollowing caches the following IDs for ownerID.
func (c *ListCache) SetFollowing(ctx context.Context, ownerID string, ids []string) {
	c.setIDs(ctx, PrefixFollowing+ownerID, ids)
}

// GetFollowers returns the cached follower IDs for ownerID.
func (c *ListCache) GetFollowers(ctx context.Context, ownerID string) ([]string, bool) {
	return c.getIDs(ctx, PrefixFollowers+ownerID)
}

// SetFollowers caches the follower IDs for ownerID.
func (c *ListCache) SetFollowers(ctx context.Context, ownerID string, ids []string) {
	c.setIDs(ctx, PrefixFollowers+ownerID, ids)
}

// InvalidateFollowing drops the cached following list.
func (c *ListCache) InvalidateFollowing(ctx context.Context, ownerID string) {
	c.invalidate(ctx, PrefixFollowing+ownerID)
}

// InvalidateFollowers drops the cached follower list.
func (c *ListCache) InvalidateFollowers(ctx context.Context, ownerID string) {
	c.invalidate(ctx, PrefixFollowers+ownerID)
}

func (c *ListCache) getIDs(ctx context.Context, key string) ([]string, bool) {
	var ids []string
	if err := c.cache.Get(ctx, key, &ids); err != nil {
		if err != ErrCacheMiss {
			c.log.Warn("cache read failed, falling through to store",
				logger.String("key", key), logger.Err(err))
		}
		return nil, false
	}
	return ids, true
}

func (c *ListCache) setIDs(ctx context.Context, key string, ids []string) {
	if ids == nil {
		ids = []string{}
	}
	if err := c.cache.Set(ctx, key, ids, TTLDerivedList); err != nil {
		c.log.Warn("cache write failed", logger.String("key", key), logger.Err(err))
	}
}

func (c *ListCache) invalidate(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		// The entry expires within TTLDerivedList anyway.
		c.log.Warn("cache invalidation failed", logger.String("key", key), logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PHLOCK MEMBER CACHE
// ══════════════════════════════════════════════════════════════════════════════

// MemberCache implements phlock.MemberCache over Redis, same best-effort
// contract as ListCache.
type MemberCache struct {
	cache *Cache
	log   *logger.Logger
}

// NewMemberCache creates a MemberCache.
func NewMemberCache(cache *Cache, log *logger.Logger) *MemberCache {
	return &MemberCache{
		cache: cache,
		log:   log.With(logger.Component("member_cache")),
	}
}

// GetMembers returns the cached roster for ownerID.
func (c *MemberCache) GetMembers(ctx context.Context, ownerID string) ([]phlock.Member, bool) {
	key := PrefixPhlockMembers + ownerID
	var members []phlock.Member
	if err := c.cache.Get(ctx, key, &members); err != nil {
		if err != ErrCacheMiss {
			c.log.Warn("cache read failed, falling through to store",
				logger.String("key", key), logger.Err(err))
		}
		return nil, false
	}
	return members, true
}

// SetMembers caches the roster for ownerID.
func (c *MemberCache) SetMembers(ctx context.Context, ownerID string, members []phlock.Member) {
	if members == nil {
		members = []phlock.Member{}
	}
	key := PrefixPhlockMembers + ownerID
	if err := c.cache.Set(ctx, key, members, TTLDerivedList); err != nil {
		c.log.Warn("cache write failed", logger.String("key", key), logger.Err(err))
	}
}

// InvalidateMembers drops the cached roster.
func (c *MemberCache) InvalidateMembers(ctx context.Context, ownerID string) {
	key := PrefixPhlockMembers + ownerID
	if err := c.cache.Delete(ctx, key); err != nil {
		c.log.Warn("cache invalidation failed", logger.String("key", key), logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NO-OP CACHES
// ══════════════════════════════════════════════════════════════════════════════

// NoopListCache satisfies graph.ListCache when Redis is disabled. Every
// read misses, so callers always hit the store.
type NoopListCache struct{}

func (NoopListCache) GetFollowing(context.Context, string) ([]string, bool) { return nil, false }

func (NoopListCache) SetFollowing(context.Context, string, []string) {}

func (NoopListCache) GetFollowers(context.Context, string) ([]string, bool) { return nil, false }

func (NoopListCache) SetFollowers(context.Context, string, []string) {}

func (NoopListCache) InvalidateFollowing(context.Context, string) {}

func (NoopListCache) InvalidateFollowers(context.Context, string) {}

// NoopMemberCache satisfies phlock.MemberCache when Redis is disabled.
type NoopMemberCache struct{}

func (NoopMemberCache) GetMembers(context.Context, string) ([]phlock.Member, bool) {
	return nil, false
}

func (NoopMemberCache) SetMembers(context.Context, string, []phlock.Member) {}

func (NoopMemberCache) InvalidateMembers(context.Context, string) {}
