package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

const orderColumns = `id, user_id, items, total_amount, status, failure_reason,
	shipping_address, payment_method, created_at, updated_at`

const inventoryColumns = `product_id, name, price, quantity_on_hand, reserved, version,
	created_at, updated_at`

// querier is the part of pgxpool.Pool and pgx.Tx the reads need.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements orders.Store on PostgreSQL.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) GetOrder(ctx context.Context, orderID string) (orders.Order, error) {
	return getOrder(ctx, s.DB, orderID, "")
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string, skip, limit int) ([]orders.Order, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id=$1 ORDER BY created_at DESC, id OFFSET $2 LIMIT $3`, userID, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (orders.User, error) {
	return getUser(ctx, s.DB, `id`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (orders.User, error) {
	return getUser(ctx, s.DB, `email`, email)
}

func (s *Store) CreateUser(ctx context.Context, u orders.User) (orders.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = orders.RoleUser
	}
	err := s.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, name, role) VALUES ($1, $2, $3, $4)
		RETURNING created_at`, u.ID, u.Email, u.Name, u.Role).Scan(&u.CreatedAt)
	if err != nil {
		return orders.User{}, mapErr(err, "user "+u.Email)
	}
	return u, nil
}

func (s *Store) GetInventory(ctx context.Context, productID string) (orders.InventoryItem, error) {
	return getInventory(ctx, s.DB, productID, "")
}

func (s *Store) CreateInventory(ctx context.Context, item orders.InventoryItem) (orders.InventoryItem, error) {
	row := s.DB.QueryRow(ctx, `
		INSERT INTO inventory(product_id, name, price, quantity_on_hand, reserved)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+inventoryColumns,
		item.ProductID, item.Name, item.Price, item.QuantityOnHand, item.Reserved)
	out, err := scanInventory(row)
	if err != nil {
		return orders.InventoryItem{}, mapErr(err, "inventory "+item.ProductID)
	}
	return out, nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `TRUNCATE orders, inventory, users`)
	return err
}

// RunInTx runs fn in a read-committed transaction. Row locks taken through
// Tx are held until fn returns.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txStore struct{ tx pgx.Tx }

func (t *txStore) LockOrder(ctx context.Context, orderID string) (orders.Order, error) {
	return getOrder(ctx, t.tx, orderID, " FOR UPDATE")
}

func (t *txStore) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.OrderID, o.UserID, o.Items, o.TotalAmount, o.Status, o.FailureReason,
		o.ShippingAddress, o.PaymentMethod, o.CreatedAt, o.UpdatedAt)
	return mapErr(err, "order "+o.OrderID)
}

func (t *txStore) UpdateOrderStatus(ctx context.Context, orderID string, from, to orders.Status, reason string) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status=$3, failure_reason=$4, updated_at=now()
		WHERE id=$1 AND status=$2`, orderID, from, to, reason)
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("order %s is no longer %s: %w", orderID, from, orders.ErrConflict)
	}
	return nil
}

func (t *txStore) LockInventory(ctx context.Context, productID string) (orders.InventoryItem, error) {
	return getInventory(ctx, t.tx, productID, " FOR UPDATE")
}

func (t *txStore) UpdateInventory(ctx context.Context, item orders.InventoryItem) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE inventory
		SET quantity_on_hand=$3, reserved=$4, version=version+1, updated_at=now()
		WHERE product_id=$1 AND version=$2`,
		item.ProductID, item.Version, item.QuantityOnHand, item.Reserved)
	if err != nil {
		return mapErr(err, "inventory "+item.ProductID)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("inventory %s changed since version %d: %w", item.ProductID, item.Version, orders.ErrConflict)
	}
	return nil
}

func getOrder(ctx context.Context, q querier, orderID, lock string) (orders.Order, error) {
	row := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`+lock, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return orders.Order{}, mapErr(err, "order "+orderID)
	}
	return o, nil
}

func getUser(ctx context.Context, q querier, column, value string) (orders.User, error) {
	var u orders.User
	err := q.QueryRow(ctx, `SELECT id, email, name, role, created_at FROM users WHERE `+column+`=$1`, value).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		return orders.User{}, mapErr(err, "user "+value)
	}
	return u, nil
}

func getInventory(ctx context.Context, q querier, productID, lock string) (orders.InventoryItem, error) {
	row := q.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE product_id=$1`+lock, productID)
	it, err := scanInventory(row)
	if err != nil {
		return orders.InventoryItem{}, mapErr(err, "inventory "+productID)
	}
	return it, nil
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.OrderID, &o.UserID, &o.Items, &o.TotalAmount, &o.Status, &o.FailureReason,
		&o.ShippingAddress, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanInventory(row pgx.Row) (orders.InventoryItem, error) {
	var it orders.InventoryItem
	err := row.Scan(&it.ProductID, &it.Name, &it.Price, &it.QuantityOnHand, &it.Reserved, &it.Version,
		&it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// mapErr translates driver errors into the orders sentinels.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, orders.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s already exists: %w", what, orders.ErrConflict)
		case codeCheckViolation:
			return fmt.Errorf("%s: constraint %s violated: %w", what, pgErr.ConstraintName, err)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
