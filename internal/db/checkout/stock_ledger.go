package checkoutdb

import (
	"context"
	"database/sql"
	"fmt"
)

// StockLedger performs atomic conditional stock movements against Postgres.
// All decrements check and subtract in a single statement; no caller ever
// reads stock and writes it back.
type StockLedger struct {
	db *sql.DB
}

// NewStockLedger constructs a StockLedger.
func NewStockLedger(db *sql.DB) *StockLedger {
	return &StockLedger{db: db}
}

// Reserve decrements stock only if the product still has at least qty
// units. Insufficient stock is a normal false outcome, not an error.
func (l *StockLedger) Reserve(ctx context.Context, productID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("reserve: quantity must be positive, got %d", qty)
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`,
		productID, qty,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Release unconditionally adds qty back. Releases always pair with a prior
// successful reservation, so a plain additive update is sufficient.
func (l *StockLedger) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("release: quantity must be positive, got %d", qty)
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("release: product %d not found", productID)
	}
	return nil
}
