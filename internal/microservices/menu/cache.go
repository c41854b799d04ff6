package menu

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
)

// CachedCatalog keeps each tenant's menu in redis for ttl. Any cache error
// falls through to the source.
type CachedCatalog struct {
	source Catalog
	rdb    *redis.Client
	ttl    time.Duration
	lg     *zap.Logger
}

func NewCachedCatalog(source Catalog, rdb *redis.Client, ttl time.Duration, lg *zap.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedCatalog{source: source, rdb: rdb, ttl: ttl, lg: lg}
}

func cacheKey(tenantID string) string { return "menu:" + tenantID }

func (c *CachedCatalog) ListMenuItems(ctx context.Context, tenantID string) ([]domain.MenuItem, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(tenantID)).Bytes()
	switch {
	case err == nil:
		var items []domain.MenuItem
		if jerr := json.Unmarshal(raw, &items); jerr == nil {
			return items, nil
		}
		c.lg.Warn("menu_cache_corrupt", zap.String("tenant_id", tenantID))
	case !errors.Is(err, redis.Nil):
		c.lg.Warn("menu_cache_unavailable", zap.String("tenant_id", tenantID), zap.Error(err))
	}

	items, err := c.source.ListMenuItems(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(items); err == nil {
		if err := c.rdb.Set(ctx, cacheKey(tenantID), b, c.ttl).Err(); err != nil {
			c.lg.Warn("menu_cache_write_failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return items, nil
}

// Invalidate drops a tenant's cached menu.
func (c *CachedCatalog) Invalidate(ctx context.Context, tenantID string) error {
	return c.rdb.Del(ctx, cacheKey(tenantID)).Err()
}
