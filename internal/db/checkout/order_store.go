package checkoutdb

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/checkout"
)

// OrderStore persists orders and their line-item snapshots in Postgres.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore constructs an OrderStore.
func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// NewOrderStoreWithSchema initializes the schema then returns the store.
func NewOrderStoreWithSchema(ctx context.Context, db *sql.DB) (*OrderStore, error) {
	store := NewOrderStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the checkout tables if they do not exist.
func (s *OrderStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			price BIGINT NOT NULL,
			stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL REFERENCES products(id),
			quantity INT NOT NULL CHECK (quantity > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			total BIGINT NOT NULL,
			payment_method TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			order_status TEXT NOT NULL,
			provider_order_id TEXT,
			discount_code_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			price BIGINT NOT NULL,
			quantity INT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// ListCartItems returns the user's cart lines joined with the current
// product title and price, in cart insertion order.
func (s *OrderStore) ListCartItems(ctx context.Context, userID int64) ([]checkout.CartItem, error) {
	return listCartItems(ctx, s.db, userID)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listCartItems(ctx context.Context, q queryer, userID int64) ([]checkout.CartItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ci.product_id, p.title, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []checkout.CartItem
	for rows.Next() {
		var item checkout.CartItem
		if err := rows.Scan(&item.ProductID, &item.Title, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateFromCart snapshots the user's cart into a new order inside a single
// transaction. Title and price are copied at creation time so later product
// edits never change historical orders.
func (s *OrderStore) CreateFromCart(ctx context.Context, userID int64, paymentMethod string) (checkout.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return checkout.Order{}, err
	}
	defer tx.Rollback()

	items, err := listCartItems(ctx, tx, userID)
	if err != nil {
		return checkout.Order{}, err
	}
	if len(items) == 0 {
		return checkout.Order{}, checkout.ErrCartEmpty
	}

	var total int64
	for _, item := range items {
		total += item.UnitPrice * int64(item.Quantity)
	}

	order := checkout.Order{
		UserID:        userID,
		Total:         total,
		PaymentMethod: paymentMethod,
		PaymentStatus: checkout.PaymentPending,
		OrderStatus:   checkout.OrderPending,
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, total, payment_method, payment_status, order_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		userID, total, paymentMethod, order.PaymentStatus, order.OrderStatus,
	)
	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return checkout.Order{}, err
	}

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, title, price, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			order.ID, item.ProductID, item.Title, item.UnitPrice, item.Quantity,
		); err != nil {
			return checkout.Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return checkout.Order{}, err
	}
	return order, nil
}

// UpdateStatus is a targeted update. Re-applying the same terminal state is
// a no-op; callers retry after ambiguous failures.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID int64, orderStatus checkout.OrderStatus, paymentStatus checkout.PaymentStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET order_status = $2, payment_status = $3
		WHERE id = $1`,
		orderID, orderStatus, paymentStatus,
	)
	return err
}

// AttachProviderOrder records the external provider order id on the order
// row so a dangling order stays resolvable after the cache entry expires.
func (s *OrderStore) AttachProviderOrder(ctx context.Context, orderID int64, providerOrderID string) error {
	if providerOrderID == "" {
		return fmt.Errorf("provider order id required")
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET provider_order_id = $2
		WHERE id = $1`,
		orderID, providerOrderID,
	)
	return err
}

// CancelDanglingOrder marks the order for a provider order id as cancelled
// and failed, but only while payment is still pending so a paid order can
// never be clobbered. Returns whether a row was cancelled.
func (s *OrderStore) CancelDanglingOrder(ctx context.Context, providerOrderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET order_status = $2, payment_status = $3
		WHERE provider_order_id = $1 AND payment_status = $4`,
		providerOrderID, checkout.OrderCancelled, checkout.PaymentFailed, checkout.PaymentPending,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ClearCart removes all cart lines for the user.
func (s *OrderStore) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
