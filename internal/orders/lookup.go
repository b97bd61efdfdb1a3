package orders

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// OrderView is an order plus where it was served from.
type OrderView struct {
	Order  Order  `json:"order"`
	Source Source `json:"source"`
}

type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
	Pages  int     `json:"pages"`
}

// Lookup reads orders cache-first. The cache never decides access: the
// owner-or-admin check runs on whichever copy is returned.
type Lookup struct {
	store Store
	cache *orderCache
	log   *zap.Logger
}

func NewLookup(store Store, cache Cache, cacheTTL time.Duration, log *zap.Logger) *Lookup {
	return &Lookup{store: store, cache: newOrderCache(cache, cacheTTL, log), log: log}
}

func (l *Lookup) GetOrder(ctx context.Context, orderID string, caller Caller) (OrderView, error) {
	ctx, span := tracer.Start(ctx, "orders.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	o, err := l.cache.get(ctx, orderID)
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("order.source", string(SourceCache)))
		if !o.VisibleTo(caller) {
			return OrderView{}, ErrForbidden
		}
		return OrderView{Order: o, Source: SourceCache}, nil
	case !errors.Is(err, ErrCacheMiss):
		l.log.Warn("order cache read failed", zap.String("order_id", orderID), zap.Error(err))
	}

	o, err = l.store.GetOrder(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	span.SetAttributes(attribute.String("order.source", string(SourceDatabase)))
	if !o.VisibleTo(caller) {
		return OrderView{}, ErrForbidden
	}
	l.cache.put(ctx, o)
	return OrderView{Order: o, Source: SourceDatabase}, nil
}

// ListOrders pages through a user's orders, newest first. page is 1-indexed.
func (l *Lookup) ListOrders(ctx context.Context, userID string, page, pageSize int) (OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	list, total, err := l.store.ListOrdersByUser(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return OrderPage{}, err
	}
	if list == nil {
		list = []Order{}
	}
	return OrderPage{
		Orders: list,
		Total:  total,
		Page:   page,
		Limit:  pageSize,
		Pages:  (total + pageSize - 1) / pageSize,
	}, nil
}
