package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/model"
)

// variantKey encodes a variant reference for the stock and transfer_lines
// tables, where the base product is stored as variant_id 0.
func variantKey(v model.VariantRef) int64 {
	id, _ := v.ID()
	return id
}

func variantFromKey(key int64) (model.VariantRef, error) {
	return model.ParseVariantID(key)
}

// QuantityOf returns the on-hand quantity of a product or variant in a
// warehouse. A missing row is 0. Negative quantities are returned as stored.
func QuantityOf(ctx context.Context, q db.Querier, warehouseID, productID int64, variant model.VariantRef) (int, error) {
	return quantityOf(ctx, q, warehouseID, productID, variant, "")
}

// LockQuantity reads the quantity like QuantityOf and, on Postgres, holds a
// row lock on it until the surrounding transaction ends.
func LockQuantity(ctx context.Context, q db.Querier, warehouseID, productID int64, variant model.VariantRef) (int, error) {
	return quantityOf(ctx, q, warehouseID, productID, variant, q.Dialect().ForUpdate())
}

func quantityOf(ctx context.Context, q db.Querier, warehouseID, productID int64, variant model.VariantRef, lock string) (int, error) {
	var qty int
	err := q.QueryRowContext(ctx,
		`SELECT quantity FROM stock WHERE warehouse_id = ? AND product_id = ? AND variant_id = ?`+lock,
		warehouseID, productID, variantKey(variant),
	).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading stock: %w", err)
	}
	return qty, nil
}

// AdjustStock adds delta (which may be negative) to a stock row, creating it
// if needed, and returns the new quantity. Results below zero are allowed.
func AdjustStock(ctx context.Context, q db.Querier, warehouseID, productID int64, variant model.VariantRef, delta int) (int, error) {
	var qty int
	err := q.QueryRowContext(ctx,
		`INSERT INTO stock (warehouse_id, product_id, variant_id, quantity) VALUES (?, ?, ?, ?)
		 ON CONFLICT (warehouse_id, product_id, variant_id) DO UPDATE SET quantity = stock.quantity + excluded.quantity
		 RETURNING quantity`,
		warehouseID, productID, variantKey(variant), delta,
	).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("adjusting stock: %w", err)
	}
	return qty, nil
}

// DebitStock removes qty from a stock row only if at least qty is on hand.
// It reports false when the guard failed, leaving the row untouched.
func DebitStock(ctx context.Context, q db.Querier, warehouseID, productID int64, variant model.VariantRef, qty int) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE stock SET quantity = quantity - ?
		 WHERE warehouse_id = ? AND product_id = ? AND variant_id = ? AND quantity >= ?`,
		qty, warehouseID, productID, variantKey(variant), qty,
	)
	if err != nil {
		return false, fmt.Errorf("debiting stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debiting stock: %w", err)
	}
	return n == 1, nil
}

// ListStock returns every stock row of a warehouse with product names and
// package labels joined in.
func ListStock(ctx context.Context, q db.Querier, warehouseID int64) ([]model.Stock, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT s.warehouse_id, s.product_id, s.variant_id, s.quantity, p.name,
		        COALESCE(v.package, p.wholesale_package)
		 FROM stock s
		 JOIN products p ON p.id = s.product_id
		 LEFT JOIN variants v ON v.id = s.variant_id AND v.product_id = s.product_id
		 WHERE s.warehouse_id = ?
		 ORDER BY p.name, s.variant_id`, warehouseID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}
	defer rows.Close()

	var stock []model.Stock
	for rows.Next() {
		var s model.Stock
		var key int64
		if err := rows.Scan(&s.WarehouseID, &s.ProductID, &key, &s.Quantity, &s.ProductName, &s.Package); err != nil {
			return nil, fmt.Errorf("scanning stock: %w", err)
		}
		if s.Variant, err = variantFromKey(key); err != nil {
			return nil, fmt.Errorf("scanning stock: %w", err)
		}
		stock = append(stock, s)
	}
	return stock, rows.Err()
}
