package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	models "checkout-fulfillment/model"
)

// ErrProductNotFound returned when an order line references a missing product.
var ErrProductNotFound = errors.New("product not found")

const (
	updateProductSold = `UPDATE products SET sales_count = sales_count + 1, stock_qty = stock_qty - $1 WHERE id = $2`
	deleteCartItem    = `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`
)

// applyOrderLines decrements stock and bumps the sales counter once per line,
// then drops the matching cart item. Lines are applied one at a time in order.
// A cart item that is already gone is not an error.
func applyOrderLines(ctx context.Context, tx *sql.Tx, cartID int64, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	stockStmt, err := tx.PrepareContext(ctx, updateProductSold)
	if err != nil {
		return err
	}
	defer stockStmt.Close()

	cartStmt, err := tx.PrepareContext(ctx, deleteCartItem)
	if err != nil {
		return err
	}
	defer cartStmt.Close()

	for _, l := range lines {
		res, err := stockStmt.ExecContext(ctx, l.Quantity, l.ProductID)
		if err != nil {
			return fmt.Errorf("update product %d: %w", l.ProductID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", ErrProductNotFound, l.ProductID)
		}
		if _, err := cartStmt.ExecContext(ctx, cartID, l.ProductID); err != nil {
			return fmt.Errorf("delete cart item %d/%d: %w", cartID, l.ProductID, err)
		}
	}
	return nil
}
