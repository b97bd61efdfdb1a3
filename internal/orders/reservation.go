package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// maxTxAttempts bounds retries of a transaction that lost a version race.
const maxTxAttempts = 3

// Reserver places reservation holds on inventory. All lines of a request are
// validated under row locks before any of them is applied, so a rejected
// request leaves inventory untouched.
type Reserver struct {
	store Store
	log   *zap.Logger
}

func NewReserver(store Store, log *zap.Logger) *Reserver {
	return &Reserver{store: store, log: log}
}

// Reserve holds stock for every line in its own transaction and returns the
// order item snapshots. A *StockError lists every line that could not be served.
func (r *Reserver) Reserve(ctx context.Context, lines []Line) ([]OrderItem, error) {
	var items []OrderItem
	err := runTx(ctx, r.store, func(ctx context.Context, tx Tx) error {
		var err error
		items, err = r.ReserveTx(ctx, tx, lines)
		return err
	})
	return items, err
}

// ReserveTx is Reserve inside a caller-owned transaction.
func (r *Reserver) ReserveTx(ctx context.Context, tx Tx, lines []Line) ([]OrderItem, error) {
	rows, err := lockInventory(ctx, tx, productIDs(lines))
	if err != nil {
		return nil, err
	}

	var failures []LineFailure
	demand := make(map[string]int, len(rows))
	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		it, ok := rows[l.ProductID]
		if !ok {
			failures = append(failures, LineFailure{ProductID: l.ProductID, Requested: l.Quantity, Missing: true})
			continue
		}
		avail := it.Available() - demand[l.ProductID]
		if avail < l.Quantity {
			failures = append(failures, LineFailure{
				ProductID: l.ProductID, Name: it.Name, Available: avail, Requested: l.Quantity,
			})
			continue
		}
		demand[l.ProductID] += l.Quantity
		items = append(items, OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  l.Quantity,
			Price:     it.Price,
		})
	}
	if len(failures) > 0 {
		return nil, &StockError{Failures: failures}
	}

	for _, id := range sortedKeys(demand) {
		it := rows[id]
		it.Reserved += demand[id]
		if err := tx.UpdateInventory(ctx, it); err != nil {
			return nil, fmt.Errorf("reserve %s: %w", id, err)
		}
	}
	return items, nil
}

// releaseTx drops the holds placed for items. Rows that disappeared are skipped
// and Reserved never goes below zero.
func (r *Reserver) releaseTx(ctx context.Context, tx Tx, items []OrderItem) error {
	demand := make(map[string]int, len(items))
	for _, it := range items {
		demand[it.ProductID] += it.Quantity
	}
	rows, err := lockInventory(ctx, tx, sortedKeys(demand))
	if err != nil {
		return err
	}
	for _, id := range sortedKeys(demand) {
		it, ok := rows[id]
		if !ok {
			continue
		}
		release := min(demand[id], it.Reserved)
		if release == 0 {
			continue
		}
		it.Reserved -= release
		if err := tx.UpdateInventory(ctx, it); err != nil {
			return fmt.Errorf("release %s: %w", id, err)
		}
	}
	return nil
}

// lockInventory locks the rows in ascending product id order so concurrent
// transactions never wait on each other in a cycle. Missing rows are absent
// from the result.
func lockInventory(ctx context.Context, tx Tx, ids []string) (map[string]InventoryItem, error) {
	rows := make(map[string]InventoryItem, len(ids))
	for _, id := range ids {
		it, err := tx.LockInventory(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock inventory %s: %w", id, err)
		}
		rows[id] = it
	}
	return rows, nil
}

func productIDs(lines []Line) []string {
	seen := make(map[string]int, len(lines))
	for _, l := range lines {
		seen[l.ProductID] += l.Quantity
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// runTx retries fn when it loses an optimistic version check.
func runTx(ctx context.Context, store Store, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = store.RunInTx(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}
