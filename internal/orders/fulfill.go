package orders

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	reasonUserNotFound = "User not found"
	reasonNotQueued    = "Order could not be queued for fulfillment"
)

// errAlreadyFinal aborts a finalize transaction whose order left Pending.
var errAlreadyFinal = errors.New("order already finalized")

// decideFunc picks the terminal status for a locked Pending order. It may
// write inventory through tx; returning an error rolls those writes back.
type decideFunc func(ctx context.Context, tx Tx, o Order) (Status, string, error)

// finalize settles a Pending order in one transaction: lock the order, let
// decide choose the outcome, give reservations back on failure, and write the
// terminal status. A non-Pending order yields errAlreadyFinal with no writes.
func finalize(ctx context.Context, store Store, r *Reserver, orderID string, decide decideFunc) (Order, error) {
	var out Order
	err := runTx(ctx, store, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			out = o
			return errAlreadyFinal
		}
		status, reason, err := decide(ctx, tx, o)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, status) {
			return fmt.Errorf("order %s: invalid transition %s -> %s", o.OrderID, o.Status, status)
		}
		if status == StatusFailed {
			if err := r.releaseTx(ctx, tx, o.Items); err != nil {
				return err
			}
		} else {
			reason = ""
		}
		if err := tx.UpdateOrderStatus(ctx, o.OrderID, StatusPending, status, reason); err != nil {
			return err
		}
		o.Status = status
		o.FailureReason = reason
		o.UpdatedAt = time.Now().UTC()
		out = o
		return nil
	})
	return out, err
}

// debit commits the physical stock movement for every item of the order.
// Items are checked in order against working copies and nothing is written
// unless all of them pass, so a failed order never keeps a partial debit.
func debit(ctx context.Context, tx Tx, o Order) (Status, string, error) {
	demand := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		demand[it.ProductID] += it.Quantity
	}
	ids := sortedKeys(demand)
	rows, err := lockInventory(ctx, tx, ids)
	if err != nil {
		return "", "", err
	}

	for _, it := range o.Items {
		row, ok := rows[it.ProductID]
		if !ok {
			return StatusFailed, fmt.Sprintf("Product %s not found in inventory", it.ProductID), nil
		}
		if row.QuantityOnHand < it.Quantity {
			return StatusFailed, fmt.Sprintf("Insufficient stock for product %s", row.Name), nil
		}
		row.QuantityOnHand -= it.Quantity
		row.Reserved = max(row.Reserved-it.Quantity, 0)
		rows[it.ProductID] = row
	}

	for _, id := range ids {
		if err := tx.UpdateInventory(ctx, rows[id]); err != nil {
			return "", "", fmt.Errorf("debit %s: %w", id, err)
		}
	}
	return StatusProcessed, "", nil
}
