// Package orderstest provides in-memory implementations of the orders ports
// for tests.
package orderstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Store is an in-memory orders.Store. Transactions are serialized and their
// writes are staged until fn returns nil. It enforces 0 <= reserved <=
// quantityOnHand the same way the SQL CHECK constraint does.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	orders    map[string]orders.Order
	users     map[string]orders.User
	inventory map[string]orders.InventoryItem
	failures  map[string]error

	inventoryWrites int
}

func NewStore() *Store {
	return &Store{
		orders:    map[string]orders.Order{},
		users:     map[string]orders.User{},
		inventory: map[string]orders.InventoryItem{},
		failures:  map[string]error{},
	}
}

// FailOn makes op ("GetOrder", "GetUser", "RunInTx", "ListOrdersByUser")
// return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

func (s *Store) SeedUser(u orders.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) SeedInventory(items ...orders.InventoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.inventory[it.ProductID] = it
	}
}

func (s *Store) SeedOrder(o orders.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.OrderID] = cloneOrder(o)
}

// Item returns the committed inventory row, zero value when absent.
func (s *Store) Item(productID string) orders.InventoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory[productID]
}

// InventoryWrites counts committed inventory row updates.
func (s *Store) InventoryWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventoryWrites
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) GetOrder(_ context.Context, orderID string) (orders.Order, error) {
	if err := s.failure("GetOrder"); err != nil {
		return orders.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", orderID, orders.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string, skip, limit int) ([]orders.Order, int, error) {
	if err := s.failure("ListOrdersByUser"); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []orders.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if skip >= total {
		return []orders.Order{}, total, nil
	}
	end := min(skip+limit, total)
	return all[skip:end], total, nil
}

func (s *Store) GetUser(_ context.Context, id string) (orders.User, error) {
	if err := s.failure("GetUser"); err != nil {
		return orders.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return orders.User{}, fmt.Errorf("user %s: %w", id, orders.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (orders.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return orders.User{}, fmt.Errorf("user %s: %w", email, orders.ErrNotFound)
}

func (s *Store) CreateUser(_ context.Context, u orders.User) (orders.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return orders.User{}, fmt.Errorf("user %s: %w", u.Email, orders.ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%d", len(s.users)+1)
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetInventory(_ context.Context, productID string) (orders.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.inventory[productID]
	if !ok {
		return orders.InventoryItem{}, fmt.Errorf("inventory %s: %w", productID, orders.ErrNotFound)
	}
	return it, nil
}

func (s *Store) CreateInventory(_ context.Context, item orders.InventoryItem) (orders.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inventory[item.ProductID]; ok {
		return orders.InventoryItem{}, fmt.Errorf("inventory %s: %w", item.ProductID, orders.ErrConflict)
	}
	s.inventory[item.ProductID] = item
	return item, nil
}

func (s *Store) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = map[string]orders.Order{}
	s.users = map[string]orders.User{}
	s.inventory = map[string]orders.InventoryItem{}
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := s.failure("RunInTx"); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{
		s:         s,
		orders:    map[string]orders.Order{},
		inventory: map[string]orders.InventoryItem{},
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	for id, it := range tx.inventory {
		s.inventory[id] = it
		s.inventoryWrites++
	}
	return nil
}

type memTx struct {
	s         *Store
	orders    map[string]orders.Order
	inventory map[string]orders.InventoryItem
}

func (t *memTx) LockOrder(_ context.Context, orderID string) (orders.Order, error) {
	if o, ok := t.orders[orderID]; ok {
		return cloneOrder(o), nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	o, ok := t.s.orders[orderID]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", orderID, orders.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (t *memTx) InsertOrder(ctx context.Context, o orders.Order) error {
	if _, err := t.LockOrder(ctx, o.OrderID); err == nil {
		return fmt.Errorf("order %s: %w", o.OrderID, orders.ErrConflict)
	}
	t.orders[o.OrderID] = cloneOrder(o)
	return nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID string, from, to orders.Status, reason string) error {
	o, err := t.LockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != from {
		return fmt.Errorf("order %s is %s: %w", orderID, o.Status, orders.ErrConflict)
	}
	o.Status = to
	o.FailureReason = reason
	o.UpdatedAt = time.Now().UTC()
	t.orders[orderID] = o
	return nil
}

func (t *memTx) LockInventory(_ context.Context, productID string) (orders.InventoryItem, error) {
	if it, ok := t.inventory[productID]; ok {
		return it, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	it, ok := t.s.inventory[productID]
	if !ok {
		return orders.InventoryItem{}, fmt.Errorf("inventory %s: %w", productID, orders.ErrNotFound)
	}
	return it, nil
}

func (t *memTx) UpdateInventory(ctx context.Context, item orders.InventoryItem) error {
	cur, err := t.LockInventory(ctx, item.ProductID)
	if err != nil {
		return err
	}
	if cur.Version != item.Version {
		return fmt.Errorf("inventory %s version %d != %d: %w", item.ProductID, cur.Version, item.Version, orders.ErrConflict)
	}
	if item.Reserved < 0 || item.QuantityOnHand < 0 || item.Reserved > item.QuantityOnHand {
		return fmt.Errorf("inventory %s: check constraint violated (on hand %d, reserved %d)",
			item.ProductID, item.QuantityOnHand, item.Reserved)
	}
	cur.QuantityOnHand = item.QuantityOnHand
	cur.Reserved = item.Reserved
	cur.Version++
	cur.UpdatedAt = time.Now().UTC()
	t.inventory[item.ProductID] = cur
	return nil
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	return o
}
