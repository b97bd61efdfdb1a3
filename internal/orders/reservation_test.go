package orders_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders/orderstest"
)

func TestReserve_AllLines(t *testing.T) {
	store := orderstest.NewStore()
	store.SeedInventory(item("a", "Smartphone", 5, 1, "10.00"), item("b", "Laptop", 3, 0, "25.50"))
	r := orders.NewReserver(store, zap.NewNop())

	items, err := r.Reserve(context.Background(), []orders.Line{{ProductID: "a", Quantity: 2}, {ProductID: "b", Quantity: 3}})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Smartphone", items[0].Name)
	assert.Equal(t, "10.00", items[0].Price.StringFixed(2))
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "Laptop", items[1].Name)

	assert.Equal(t, 3, store.Item("a").Reserved)
	assert.Equal(t, 5, store.Item("a").QuantityOnHand)
	assert.Equal(t, 3, store.Item("b").Reserved)
}

func TestReserve_RejectsWholeRequest(t *testing.T) {
	store := orderstest.NewStore()
	store.SeedInventory(item("a", "Smartphone", 5, 0, "10.00"), item("b", "Laptop", 2, 2, "25.50"))
	r := orders.NewReserver(store, zap.NewNop())

	_, err := r.Reserve(context.Background(), []orders.Line{
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
	})
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	var se *orders.StockError
	require.True(t, errors.As(err, &se))
	require.Len(t, se.Failures, 2)
	assert.Equal(t, "Insufficient stock for product Laptop. Available: 0, Requested: 1", se.Failures[0].Message())
	assert.Equal(t, "Product ghost not found in inventory", se.Failures[1].Message())

	assert.Equal(t, 0, store.Item("a").Reserved, "valid line must not be reserved when another line fails")
	assert.Equal(t, 2, store.Item("b").Reserved)
	assert.Zero(t, store.InventoryWrites())
}

func TestReserve_RepeatedProductCountsCumulatively(t *testing.T) {
	store := orderstest.NewStore()
	store.SeedInventory(item("a", "Smartphone", 3, 0, "10.00"))
	r := orders.NewReserver(store, zap.NewNop())

	_, err := r.Reserve(context.Background(), []orders.Line{{ProductID: "a", Quantity: 2}, {ProductID: "a", Quantity: 2}})
	var se *orders.StockError
	require.True(t, errors.As(err, &se))
	require.Len(t, se.Failures, 1)
	assert.Equal(t, 1, se.Failures[0].Available)
	assert.Equal(t, 0, store.Item("a").Reserved)

	items, err := r.Reserve(context.Background(), []orders.Line{{ProductID: "a", Quantity: 1}, {ProductID: "a", Quantity: 2}})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 3, store.Item("a").Reserved)
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	const stock, requests = 20, 50

	store := orderstest.NewStore()
	store.SeedInventory(item("a", "Smartphone", stock, 0, "10.00"))
	r := orders.NewReserver(store, zap.NewNop())

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Reserve(context.Background(), []orders.Line{{ProductID: "a", Quantity: 1}})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, orders.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, stock, ok.Load())
	assert.EqualValues(t, requests-stock, rejected.Load())
	got := store.Item("a")
	assert.Equal(t, stock, got.Reserved)
	assert.Equal(t, 0, got.Available())
}
