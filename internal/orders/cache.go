package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// KeyOrder caches an order snapshot: order:{order_id} -> Order JSON.
const KeyOrder = "order:%s"

const DefaultCacheTTL = time.Hour

func OrderCacheKey(orderID string) string { return fmt.Sprintf(KeyOrder, orderID) }

// orderCache wraps Cache with the order codec. Writes are best-effort.
type orderCache struct {
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

func newOrderCache(c Cache, ttl time.Duration, log *zap.Logger) *orderCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &orderCache{cache: c, ttl: ttl, log: log}
}

func (c *orderCache) put(ctx context.Context, o Order) {
	if c.cache == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		c.log.Error("encode order for cache", zap.String("order_id", o.OrderID), zap.Error(err))
		return
	}
	if err := c.cache.Set(ctx, OrderCacheKey(o.OrderID), b, c.ttl); err != nil {
		c.log.Warn("failed to cache order", zap.String("order_id", o.OrderID), zap.Error(err))
	}
}

func (c *orderCache) get(ctx context.Context, orderID string) (Order, error) {
	if c.cache == nil {
		return Order{}, ErrCacheMiss
	}
	b, err := c.cache.Get(ctx, OrderCacheKey(orderID))
	if err != nil {
		return Order{}, err
	}
	var o Order
	if err := json.Unmarshal(b, &o); err != nil {
		return Order{}, fmt.Errorf("decode cached order: %w", err)
	}
	return o, nil
}
