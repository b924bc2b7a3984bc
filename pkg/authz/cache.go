package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lumenfeed/lumen/pkg/account"
	"github.com/lumenfeed/lumen/pkg/observability"
)

// PermissionSource supplies the permissions attached to a role. Satisfied
// by *account.Store.
type PermissionSource interface {
	GetRolePermissions(ctx context.Context, roleID int64) ([]account.Permission, error)
}

// l1Entry carries its own deadline so the in-process tier honors the same
// TTL as Redis.
type l1Entry struct {
	perms     []account.Permission
	expiresAt time.Time
}

// PermissionCache layers an in-process LRU and an optional Redis tier over
// a PermissionSource. Reads prefer L1, then L2, then the source; a source
// read repopulates both tiers. Errors in either cache tier are logged and
// ignored.
type PermissionCache struct {
	source  PermissionSource
	l1      *lru.Cache[int64, l1Entry]
	redis   *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewPermissionCache builds the cache. redisClient may be nil, which
// disables the L2 tier.
func NewPermissionCache(source PermissionSource, l1Size int, redisClient *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) (*PermissionCache, error) {
	if l1Size <= 0 {
		l1Size = 256
	}
	l1, err := lru.New[int64, l1Entry](l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission L1 cache: %w", err)
	}

	return &PermissionCache{
		source:  source,
		l1:      l1,
		redis:   redisClient,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

func redisKey(roleID int64) string {
	return fmt.Sprintf("lumen:authz:role:%d:permissions", roleID)
}

// GetRolePermissions reads through the cache tiers
func (c *PermissionCache) GetRolePermissions(ctx context.Context, roleID int64) ([]account.Permission, error) {
	if entry, ok := c.l1.Get(roleID); ok && c.now().Before(entry.expiresAt) {
		c.hit("l1")
		return entry.perms, nil
	}

	if c.redis != nil {
		raw, err := c.redis.Get(ctx, redisKey(roleID)).Bytes()
		if err == nil {
			var perms []account.Permission
			jsonErr := json.Unmarshal(raw, &perms)
			if jsonErr == nil {
				c.hit("l2")
				c.l1.Add(roleID, l1Entry{perms: perms, expiresAt: c.now().Add(c.ttl)})
				return perms, nil
			}
			c.logger.WithError(jsonErr).Warn("corrupt permission cache entry, falling through to database")
		} else if err != redis.Nil {
			c.logger.WithError(err).Warn("permission cache read failed, falling through to database")
		}
	}

	perms, err := c.source.GetRolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	c.miss()

	c.l1.Add(roleID, l1Entry{perms: perms, expiresAt: c.now().Add(c.ttl)})
	if c.redis != nil {
		if raw, err := json.Marshal(perms); err == nil {
			if err := c.redis.Set(ctx, redisKey(roleID), raw, c.ttl).Err(); err != nil {
				c.logger.WithError(err).Warn("permission cache write failed")
			}
		}
	}

	return perms, nil
}

// Invalidate drops the cached permissions for one role. Called by the admin
// handlers after any role or permission write.
func (c *PermissionCache) Invalidate(ctx context.Context, roleID int64) {
	c.l1.Remove(roleID)
	if c.redis != nil {
		if err := c.redis.Del(ctx, redisKey(roleID)).Err(); err != nil {
			c.logger.WithError(err).WithField("role_id", roleID).Warn("permission cache invalidation failed")
		}
	}
}

// InvalidateAll drops every cached role. Used after permission writes,
// which may affect any number of roles.
func (c *PermissionCache) InvalidateAll(ctx context.Context) {
	c.l1.Purge()
	if c.redis == nil {
		return
	}

	iter := c.redis.Scan(ctx, 0, "lumen:authz:role:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.WithError(err).Warn("permission cache invalidation failed")
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Warn("permission cache scan failed")
	}
}

func (c *PermissionCache) hit(tier string) {
	if c.metrics != nil {
		c.metrics.PermCacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *PermissionCache) miss() {
	if c.metrics != nil {
		c.metrics.PermCacheMissTotal.Inc()
	}
}
