package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders/orderstest"
)

type fixture struct {
	store    *orderstest.Store
	queue    *orderstest.Queue
	cache    *orderstest.Cache
	notifier *orderstest.Notifier
	intake   *orders.Intake
	lookup   *orders.Lookup
	worker   *orders.Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    orderstest.NewStore(),
		queue:    orderstest.NewQueue(),
		cache:    orderstest.NewCache(),
		notifier: orderstest.NewNotifier(),
	}
	log := zap.NewNop()
	f.intake = orders.NewIntake(f.store, f.queue, f.cache, time.Hour, log)
	f.lookup = orders.NewLookup(f.store, f.cache, time.Hour, log)
	f.worker = orders.NewWorker(f.store, f.queue, f.cache, f.notifier, orders.WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		WaitTime:     -1,
		CacheTTL:     time.Hour,
	}, log)

	f.store.SeedUser(orders.User{ID: "u1", Email: "user@example.com", Name: "Regular User", Role: orders.RoleUser})
	f.store.SeedUser(orders.User{ID: "u2", Email: "other@example.com", Name: "Other User", Role: orders.RoleUser})
	f.store.SeedUser(orders.User{ID: "admin", Email: "admin@example.com", Name: "Admin User", Role: orders.RoleAdmin})
	return f
}

func item(id, name string, onHand, reserved int, price string) orders.InventoryItem {
	return orders.InventoryItem{
		ProductID:      id,
		Name:           name,
		Price:          decimal.RequireFromString(price),
		QuantityOnHand: onHand,
		Reserved:       reserved,
	}
}

func address() orders.Address {
	return orders.Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"}
}

func orderInput(userID string, lines ...orders.Line) orders.CreateOrderInput {
	return orders.CreateOrderInput{
		UserID:          userID,
		Items:           lines,
		ShippingAddress: address(),
		PaymentMethod:   orders.PaymentCreditCard,
	}
}

func (f *fixture) create(t *testing.T, userID string, lines ...orders.Line) orders.Order {
	t.Helper()
	o, err := f.intake.CreateOrder(context.Background(), orderInput(userID, lines...))
	require.NoError(t, err)
	return o
}

// drain polls until the queue is empty or nothing more can be received.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 10 && f.worker.Poll(context.Background()) > 0; i++ {
	}
}

func (f *fixture) requireInvariant(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		it := f.store.Item(id)
		require.GreaterOrEqual(t, it.Reserved, 0, id)
		require.LessOrEqual(t, it.Reserved, it.QuantityOnHand, id)
	}
}
