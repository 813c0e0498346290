// Package inventory owns per-product stock inside the order transaction.
// Reservations serialize on the product row lock, so two concurrent checkouts
// against the same product cannot jointly drive stock below zero.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ProductNotFoundError reports a cart line referencing a product that does
// not exist in the catalog.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product ID %d not found.", e.ProductID)
}

// InsufficientStockError reports a reservation that exceeds available stock.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Sorry, %q is out of stock (Only %d left).", e.Name, e.Available)
}

// Snapshot is the pre-decrement product state the order pipeline prices from.
type Snapshot struct {
	Name      string
	BasePrice float64
}

// Ledger checks and decrements stock as part of an enclosing transaction.
// Nothing it does is visible outside tx until the caller commits.
type Ledger interface {
	Reserve(ctx context.Context, tx pgx.Tx, productID int64, quantity int) (Snapshot, error)
}

type pgxLedger struct{}

func NewLedger() Ledger {
	return pgxLedger{}
}

// Reserve locks the product row, verifies stock covers quantity, and
// decrements it. FOR UPDATE makes a concurrent reservation of the same product
// wait for this transaction to finish and then re-read up-to-date stock.
func (pgxLedger) Reserve(ctx context.Context, tx pgx.Tx, productID int64, quantity int) (Snapshot, error) {
	var (
		snapshot Snapshot
		stock    int
	)

	err := tx.QueryRow(ctx,
		"SELECT name, base_price, stock FROM products WHERE id = $1 FOR UPDATE",
		productID,
	).Scan(&snapshot.Name, &snapshot.BasePrice, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, &ProductNotFoundError{ProductID: productID}
		}
		return Snapshot{}, fmt.Errorf("inventory: failed to lock product %d: %w", productID, err)
	}

	if stock < quantity {
		return Snapshot{}, &InsufficientStockError{
			ProductID: productID,
			Name:      snapshot.Name,
			Available: stock,
			Requested: quantity,
		}
	}

	_, err = tx.Exec(ctx, "UPDATE products SET stock = stock - $1, updated_at = now() WHERE id = $2", quantity, productID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("inventory: failed to decrement stock for product %d: %w", productID, err)
	}

	return snapshot, nil
}

// Restock returns quantity units to a product's stock. Used by the
// cancellation policy inside the status-update transaction.
func Restock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error {
	cmdTag, err := tx.Exec(ctx, "UPDATE products SET stock = stock + $1, updated_at = now() WHERE id = $2", quantity, productID)
	if err != nil {
		return fmt.Errorf("inventory: failed to restock product %d: %w", productID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return &ProductNotFoundError{ProductID: productID}
	}

	return nil
}
