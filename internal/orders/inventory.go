package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Inventory is the admin surface over stock rows.
type Inventory struct {
	store Store
}

func NewInventory(store Store) *Inventory { return &Inventory{store: store} }

func (s *Inventory) Get(ctx context.Context, productID string) (InventoryItem, error) {
	return s.store.GetInventory(ctx, productID)
}

func (s *Inventory) Create(ctx context.Context, productID, name string, quantity int, price decimal.Decimal) (InventoryItem, error) {
	var details []string
	if strings.TrimSpace(productID) == "" {
		details = append(details, "Product ID is required")
	}
	if strings.TrimSpace(name) == "" {
		details = append(details, "Name is required")
	}
	if quantity < 0 {
		details = append(details, "Quantity must be a non-negative integer")
	}
	if price.IsNegative() {
		details = append(details, "Price must be a non-negative number")
	}
	if len(details) > 0 {
		return InventoryItem{}, &ValidationError{Details: details}
	}
	now := time.Now().UTC()
	return s.store.CreateInventory(ctx, InventoryItem{
		ProductID:      productID,
		Name:           name,
		Price:          price,
		QuantityOnHand: quantity,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// SetQuantity overwrites the on-hand count. It refuses to go below what
// pending orders already hold.
func (s *Inventory) SetQuantity(ctx context.Context, productID string, quantity int) (InventoryItem, error) {
	if quantity < 0 {
		return InventoryItem{}, &ValidationError{Details: []string{"Valid quantity is required"}}
	}
	var out InventoryItem
	err := runTx(ctx, s.store, func(ctx context.Context, tx Tx) error {
		it, err := tx.LockInventory(ctx, productID)
		if err != nil {
			return err
		}
		if quantity < it.Reserved {
			return &ValidationError{Details: []string{
				fmt.Sprintf("Cannot set quantity below reserved amount (%d)", it.Reserved),
			}}
		}
		it.QuantityOnHand = quantity
		if err := tx.UpdateInventory(ctx, it); err != nil {
			return err
		}
		it.Version++
		it.UpdatedAt = time.Now().UTC()
		out = it
		return nil
	})
	return out, err
}
