package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type CreateOrderInput struct {
	UserID          string        `json:"-"`
	Items           []Line        `json:"items"`
	ShippingAddress Address       `json:"shippingAddress"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
}

// Validate checks the request shape before anything touches the store.
func (in CreateOrderInput) Validate() error {
	var details []string
	if in.UserID == "" {
		details = append(details, "User ID is required")
	}
	if len(in.Items) == 0 {
		details = append(details, "Items are required")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			details = append(details, fmt.Sprintf("items[%d]: Product ID is required", i))
		}
		if it.Quantity < 1 {
			details = append(details, fmt.Sprintf("items[%d]: Quantity must be at least 1", i))
		}
	}
	a := in.ShippingAddress
	for _, f := range []struct{ name, v string }{
		{"Street", a.Street}, {"City", a.City}, {"State", a.State}, {"Zip code", a.ZipCode}, {"Country", a.Country},
	} {
		if strings.TrimSpace(f.v) == "" {
			details = append(details, f.name+" is required")
		}
	}
	if !in.PaymentMethod.Valid() {
		details = append(details, "Invalid payment method")
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// Intake creates orders: reserve, persist, enqueue, then warm the cache.
type Intake struct {
	store    Store
	queue    Queue
	reserver *Reserver
	cache    *orderCache
	log      *zap.Logger
	now      func() time.Time
}

func NewIntake(store Store, queue Queue, cache Cache, cacheTTL time.Duration, log *zap.Logger) *Intake {
	return &Intake{
		store:    store,
		queue:    queue,
		reserver: NewReserver(store, log),
		cache:    newOrderCache(cache, cacheTTL, log),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder reserves stock for every line and persists a Pending order in
// the same transaction, then enqueues its fulfillment task. The task is only
// published after the commit so the worker can always find the order.
func (s *Intake) CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error) {
	ctx, span := tracer.Start(ctx, "orders.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", in.UserID), attribute.Int("order.lines", len(in.Items)))

	if err := in.Validate(); err != nil {
		return Order{}, err
	}

	var order Order
	err := runTx(ctx, s.store, func(ctx context.Context, tx Tx) error {
		items, err := s.reserver.ReserveTx(ctx, tx, in.Items)
		if err != nil {
			return err
		}
		now := s.now()
		order = Order{
			OrderID:         uuid.NewString(),
			UserID:          in.UserID,
			Items:           items,
			TotalAmount:     totalOf(items),
			Status:          StatusPending,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", order.OrderID))

	body, err := NewProcessOrderTask(order.OrderID).Encode()
	if err != nil {
		return Order{}, fmt.Errorf("encode task: %w", err)
	}
	msgID, err := s.queue.Enqueue(ctx, body)
	if err != nil {
		s.log.Error("enqueue fulfillment task failed", zap.String("order_id", order.OrderID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		s.abandon(ctx, order.OrderID)
		return Order{}, fmt.Errorf("enqueue order %s: %w", order.OrderID, err)
	}
	s.log.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", order.UserID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.String("message_id", msgID),
	)

	s.cache.put(ctx, order)
	return order, nil
}

// abandon fails an order whose task never reached the queue and gives its
// stock back, so nothing stays held for an order no worker will see.
func (s *Intake) abandon(ctx context.Context, orderID string) {
	ctx = context.WithoutCancel(ctx)
	_, err := finalize(ctx, s.store, s.reserver, orderID, func(context.Context, Tx, Order) (Status, string, error) {
		return StatusFailed, reasonNotQueued, nil
	})
	if err != nil {
		s.log.Error("abandon unqueued order", zap.String("order_id", orderID), zap.Error(err))
	}
}
