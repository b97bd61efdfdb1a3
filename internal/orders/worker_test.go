package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders/orderstest"
)

func TestWorker_ProcessesOrderEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.store.SeedInventory(item("a", "ProductA", 5, 0, "10.00"))

	o := f.create(t, "u1", orders.Line{ProductID: "a", Quantity: 1})
	require.Equal(t, 1, f.store.Item("a").Reserved)

	require.Equal(t, 1, f.worker.Poll(context.Background()))

	a := f.store.Item("a")
	assert.Equal(t, 4, a.QuantityOnHand)
	assert.Equal(t, 0, a.Reserved)
	f.requireInvariant(t, "a")

	stored, err := f.store.GetOrder(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessed, stored.Status)
	assert.Empty(t, stored.FailureReason)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "user@example.com", sent[0].To)
	assert.Contains(t, sent[0].Subject, "Processed")
	assert.Contains(t, sent[0].Subject, o.OrderID)
	assert.Contains(t, sent[0].Body, "$10.00")

	assert.Zero(t, f.queue.Len(), "message should be acknowledged")

	v, err := f.lookup.GetOrder(context.Background(), o.OrderID, owner)
	require.NoError(t, err)
	assert.Equal(t, orders.SourceCache, v.Source)
	assert.Equal(t, orders.StatusProcessed, v.Order.Status, "cache must carry the final state")
}

func TestWorker_DebitMatchesReservation(t *testing.T) {
	f := newFixture(t)
	f.store.SeedInventory(item("a", "ProductA", 10, 2, "10.00"), item("b", "ProductB", 6, 1, "3.00"))

	f.create(t, "u1", orders.Line{ProductID: "a", Quantity: 3}, orders.Line{ProductID: "b", Quantity: 2})
	f.create(t, "u2", orders.Line{ProductID: "a", Quantity: 1})
	assert.Equal(t, 6, f.store.Item("a").Reserved)
	assert.Equal(t, 3, f.store.Item("b").Reserved)

	f.drain(t)

	a, b := f.store.Item("a"), f.store.Item("b")
	assert.Equal(t, 6, a.QuantityOnHand)
	assert.Equal(t, 2, a.Reserved, "reserved returns to its pre-order baseline")
	assert.Equal(t, 4, b.QuantityOnHand)
	assert.Equal(t, 1, b.Reserved)
	f.requireInvariant(t, "a", "b")
	assert.Len(t, f.notifier.Sent(), 2)
}

func TestWorker_RedeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.store.SeedInventory(item("a", "ProductA", 5, 0, "10.00"))
	o := f.create(t, "u1", orders.Line{ProductID: "a", Quantity: 2})
	body, err := orders.NewProcessOrderTask(o.OrderID).Encode()
	require.NoError(t, err)

	f.drain(t)
	writes := f.store.InventoryWrites()
	after := f.store.Item("a")

	_, err = f.queue.Enqueue(context.Background(), body)
	require.NoError(t, err)
	require.Equal(t, 1, f.worker.Poll(context.Background()))

	assert.Equal(t, writes, f.store.InventoryWrites())
	assert.Equal(t, after, f.store.Item("a"))
	assert.Len(t, f.notifier.Sent(), 1)
	assert.Zero(t, f.queue.Len())
}

func TestWorker_MissingOrderIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	body, _ := orders.NewProcessOrderTask("nope").Encode()
	_, err := f.queue.Enqueue(context.Background(), body)
	require.NoError(t, err)

	require.Equal(t, 1, f.worker.Poll(context.Background()))
	assert.Zero(t, f.queue.Len())
	assert.Empty(t, f.notifier.Sent())
}

func TestWorker_UserNotFound(t *testing.T) {
	f := newFixture(t)
	f.store.SeedInventory(item("a", "ProductA", 5, 0, "10.00"))
	o := f.create(t, "ghost", orders.Line{ProductID: "a", Quantity: 2})
	require.Equal(t, 2, f.store.Item("a").Reserved)

	f.drain(t)

	stored, err := f.store.GetOrder(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, stored.Status)
	assert.Equal(t, "User not found", stored.FailureReason)
	assert.Empty(t, f.notifier.Sent())
	assert.Zero(t, f.queue.Len())

	a := f.store.Item("a")
	assert.Equal(t, 5, a.QuantityOnHand)
	assert.Equal(t, 0, a.Reserved, "failed order releases its hold")
}

func TestWorker_FailedDebitLeavesNoPartialWrites(t *testing.T) {
	f := newFixture(t)
	f.store.SeedInventory(item("a", "ProductA", 5, 0, "10.00"), item("b", "ProductB", 5, 0, "4.00"))
	o := f.create(t, "u1", orders.Line{ProductID: "a", Quantity: 2}, orders.Line{ProductID: "b", Quantity: 3})

	// stock vanished between reservation and fulfillment
	b := f.store.Item("b")
	b.QuantityOnHand, b.Reserved = 1, 0
	f.store.SeedInventory(b)

	f.drain(t)

	stored, err := f.store.GetOrder(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, stored.Status)
	assert.Equal(t, "Insufficient stock for product ProductB", stored.FailureReason)

	a := f.store.Item("a")
	assert.Equal(t, 5, a.QuantityOnHand, "earlier line must not stay debited")
	assert.Equal(t, 0, a.Reserved)
	f.requireInvariant(t, "a", "b")

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, "Failed")
	assert.Contains(t, sent[0].Body, "Insufficient stock for product ProductB")
	assert.Zero(t, f.queue.Len())
}

func TestWorker_MissingInventoryRow(t *testing.T) {
	f := newFixture(t)
	f.store.SeedOrder(orders.Order{
		OrderID: "o1",
		UserID:  "u1",
		Status:  orders.StatusPending,
		Items:   []orders.OrderItem{{ProductID: "gone", Name: "Gone", Quantity: 1}},
	})

	require.NoError(t, f.worker.ProcessOrder(context.Background(), "o1"))

	stored, err := f.store.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, stored.Status)
	assert.Equal(t, "Product gone not found in inventory", stored.FailureReason)
}

func TestWorker_UnknownAndMalformedTasksAreDropped(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{
		`{"action":"REFUND_ORDER","orderId":"x"}`,
		`{"action":"PROCESS_ORDER"}`,
		`not json`,
	} {
		_, err := f.queue.Enqueue(context.Background(), []byte(body))
		require.NoError(t, err)
	}

	require.Equal(t, 3, f.worker.Poll(context.Background()))
	assert.Zero(t, f.queue.Len())
}

func TestWorker_StoreErrorLeavesMessageForRedelivery(t *testing.T) {
	f := newFixture(t)
	f.store.SeedInventory(item("a", "ProductA", 5, 0, "10.00"))
	o := f.create(t, "u1", orders.Line{ProductID: "a", Quantity: 1})

	f.store.FailOn("GetUser", errors.New("connection reset"))
	require.Equal(t, 1, f.worker.Poll(context.Background()))
	assert.Equal(t, 1, f.queue.Len(), "failed message stays unacknowledged")
	assert.Zero(t, f.worker.Poll(context.Background()), "hidden until visibility expires")

	f.store.FailOn("GetUser", nil)
	f.queue.ExpireVisibility()
	require.Equal(t, 1, f.worker.Poll(context.Background()))

	stored, err := f.store.GetOrder(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessed, stored.Status)
	assert.Zero(t, f.queue.Len())
}

func TestWorker_OneBadMessageDoesNotStopBatch(t *testing.T) {
	f := newFixture(t)
	// a corrupt row: debiting it breaks the reserved <= on hand constraint
	f.store.SeedInventory(item("z", "Broken", 1, 3, "1.00"), item("a", "ProductA", 5, 0, "10.00"))
	f.store.SeedOrder(orders.Order{
		OrderID: "poison",
		UserID:  "u1",
		Status:  orders.StatusPending,
		Items:   []orders.OrderItem{{ProductID: "z", Name: "Broken", Quantity: 1}},
	})
	body, err := orders.NewProcessOrderTask("poison").Encode()
	require.NoError(t, err)
	_, err = f.queue.Enqueue(context.Background(), body)
	require.NoError(t, err)
	good := f.create(t, "u1", orders.Line{ProductID: "a", Quantity: 1})

	require.Equal(t, 2, f.worker.Poll(context.Background()))

	stored, err := f.store.GetOrder(context.Background(), good.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessed, stored.Status)

	stuck, err := f.store.GetOrder(context.Background(), "poison")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, stuck.Status)
	assert.Equal(t, 1, f.queue.Len(), "only the failed message stays in flight")
	assert.Equal(t, 1, f.store.Item("z").QuantityOnHand, "failed transaction leaves no writes")
}

func TestWorker_NotifierFailureStillAcks(t *testing.T) {
	f := newFixture(t)
	f.store.SeedInventory(item("a", "ProductA", 5, 0, "10.00"))
	o := f.create(t, "u1", orders.Line{ProductID: "a", Quantity: 1})
	f.notifier.Fail(errors.New("smtp down"))
	f.cache.Fail(nil, errors.New("redis down"))

	require.Equal(t, 1, f.worker.Poll(context.Background()))

	stored, err := f.store.GetOrder(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessed, stored.Status)
	assert.Zero(t, f.queue.Len())
}

func TestWorker_ConcurrentBatch(t *testing.T) {
	store := orderstest.NewStore()
	queue := orderstest.NewQueue()
	notifier := orderstest.NewNotifier()
	store.SeedUser(orders.User{ID: "u1", Email: "user@example.com"})
	store.SeedInventory(item("a", "ProductA", 100, 0, "1.00"))
	log := zap.NewNop()

	intake := orders.NewIntake(store, queue, nil, 0, log)
	for i := 0; i < 8; i++ {
		_, err := intake.CreateOrder(context.Background(), orderInput("u1", orders.Line{ProductID: "a", Quantity: 1}))
		require.NoError(t, err)
	}
	// duplicate deliveries of the same tasks
	for _, b := range queue.Bodies() {
		_, err := queue.Enqueue(context.Background(), b)
		require.NoError(t, err)
	}

	w := orders.NewWorker(store, queue, nil, notifier, orders.WorkerConfig{BatchSize: 16, WaitTime: -1, Concurrency: 4}, log)
	require.Equal(t, 16, w.Poll(context.Background()))

	a := store.Item("a")
	assert.Equal(t, 92, a.QuantityOnHand)
	assert.Equal(t, 0, a.Reserved)
	assert.Len(t, notifier.Sent(), 8)
	assert.Zero(t, queue.Len())
}

func TestWorker_RunStopsAfterCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	f.store.SeedInventory(item("a", "ProductA", 5, 0, "10.00"))
	o := f.create(t, "u1", orders.Line{ProductID: "a", Quantity: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		stored, err := f.store.GetOrder(context.Background(), o.OrderID)
		return err == nil && stored.Status == orders.StatusProcessed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_CachedSnapshotIsJSON(t *testing.T) {
	f := newFixture(t)
	f.store.SeedInventory(item("a", "ProductA", 5, 0, "10.00"))
	o := f.create(t, "u1", orders.Line{ProductID: "a", Quantity: 1})
	f.drain(t)

	raw, err := f.cache.Get(context.Background(), orders.OrderCacheKey(o.OrderID))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "Processed", got["status"])
	assert.Equal(t, o.OrderID, got["orderId"])
}
