package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/anvaya/commerce-backend/pkg/db/models"
)

// detailCacheTTL bounds staleness for reads that race an invalidation.
const detailCacheTTL = 5 * time.Minute

// DetailCache is the subset of the redis client the order detail view uses.
// Implementations may be nil-checked by callers; a nil cache disables caching.
type DetailCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

// DetailCacheKey names the cached detail view for one order.
func DetailCacheKey(cache DetailCache, orderID uuid.UUID) string {
	return cache.CacheKey("orders", "detail", orderID.String())
}

// InvalidateDetail drops the cached detail view after an order mutation.
// Cache errors are swallowed; the TTL bounds how long a stale view survives.
func InvalidateDetail(ctx context.Context, cache DetailCache, orderID uuid.UUID) {
	if cache == nil || orderID == uuid.Nil {
		return
	}
	_ = cache.Del(ctx, DetailCacheKey(cache, orderID))
}

func cachedDetail(ctx context.Context, cache DetailCache, orderID uuid.UUID) (*models.Order, bool) {
	raw, err := cache.Get(ctx, DetailCacheKey(cache, orderID))
	if err != nil {
		return nil, false
	}
	var order models.Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, false
	}
	return &order, true
}

func storeDetail(ctx context.Context, cache DetailCache, order *models.Order) {
	payload, err := json.Marshal(order)
	if err != nil {
		return
	}
	_ = cache.Set(ctx, DetailCacheKey(cache, order.ID), payload, detailCacheTTL)
}
