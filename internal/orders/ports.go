package orders

import (
	"context"
	"time"
)

// Store is the durable record store. It is the source of truth for orders,
// inventory and users.
type Store interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	// ListOrdersByUser returns one page of the user's orders, newest first,
	// together with the user's total order count.
	ListOrdersByUser(ctx context.Context, userID string, skip, limit int) ([]Order, int, error)

	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)

	GetInventory(ctx context.Context, productID string) (InventoryItem, error)
	CreateInventory(ctx context.Context, item InventoryItem) (InventoryItem, error)

	// DeleteAll wipes orders, inventory and users. Seeding only.
	DeleteAll(ctx context.Context) error

	// RunInTx runs fn in a transaction; fn's error rolls everything back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional view of a Store. Lock* reads hold the row until
// the transaction ends.
type Tx interface {
	LockOrder(ctx context.Context, orderID string) (Order, error)
	InsertOrder(ctx context.Context, o Order) error
	// UpdateOrderStatus moves the order from `from` to `to` and returns
	// ErrConflict when the stored status is no longer `from`.
	UpdateOrderStatus(ctx context.Context, orderID string, from, to Status, reason string) error

	LockInventory(ctx context.Context, productID string) (InventoryItem, error)
	// UpdateInventory writes QuantityOnHand and Reserved iff the stored row
	// still carries item.Version, then bumps the version. ErrConflict otherwise.
	UpdateInventory(ctx context.Context, item InventoryItem) error
}

// Message is one delivery from the queue.
type Message struct {
	ID            string
	Body          []byte
	ReceiptHandle string
	Deliveries    int
}

// Queue is an at-least-once task queue with explicit acknowledgement.
// Unacknowledged messages are redelivered after a visibility timeout.
type Queue interface {
	Enqueue(ctx context.Context, body []byte) (string, error)
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	Ack(ctx context.Context, receiptHandle string) error
}

// Cache is an advisory key/value store with expiry. Get returns ErrCacheMiss
// for absent keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Notifier delivers a message to a customer address.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}
