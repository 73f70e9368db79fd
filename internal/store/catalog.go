package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/pricing"
)

// Catalog rows are owned by the catalog service. The writers here exist for
// seeding, imports and tests.

// CreateProduct inserts a product.
func CreateProduct(ctx context.Context, q db.Querier, p model.Product) (*model.Product, error) {
	if p.UnitsPerPackage <= 0 {
		p.UnitsPerPackage = 1
	}

	err := q.QueryRowContext(ctx,
		`INSERT INTO products (name, manufacturer, wholesale_package, wholesale_price, retail_package, units_per_package)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		p.Name, p.Manufacturer, p.WholesalePackage, p.WholesalePrice.String(), p.RetailPackage, p.UnitsPerPackage,
	).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return &p, nil
}

// GetProduct returns a product by ID, or nil if it does not exist.
func GetProduct(ctx context.Context, q db.Querier, id int64) (*model.Product, error) {
	p := &model.Product{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, manufacturer, wholesale_package, wholesale_price, retail_package, units_per_package
		 FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Manufacturer, &p.WholesalePackage, &p.WholesalePrice, &p.RetailPackage, &p.UnitsPerPackage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// CreateVariant inserts a variant for an existing product.
func CreateVariant(ctx context.Context, q db.Querier, v model.Variant) (*model.Variant, error) {
	if v.UnitsPerPackage <= 0 {
		v.UnitsPerPackage = 1
	}

	err := q.QueryRowContext(ctx,
		`INSERT INTO variants (product_id, package, price, units_per_package)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		v.ProductID, v.Package, v.Price.String(), v.UnitsPerPackage,
	).Scan(&v.ID)
	if err != nil {
		return nil, fmt.Errorf("creating variant: %w", err)
	}
	return &v, nil
}

// GetVariant returns a variant by ID, or nil if it does not exist.
func GetVariant(ctx context.Context, q db.Querier, id int64) (*model.Variant, error) {
	v := &model.Variant{}
	err := q.QueryRowContext(ctx,
		`SELECT id, product_id, package, price, units_per_package FROM variants WHERE id = ?`, id,
	).Scan(&v.ID, &v.ProductID, &v.Package, &v.Price, &v.UnitsPerPackage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting variant: %w", err)
	}
	return v, nil
}

// ListVariants returns the variants of a product.
func ListVariants(ctx context.Context, q db.Querier, productID int64) ([]model.Variant, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, product_id, package, price, units_per_package
		 FROM variants WHERE product_id = ? ORDER BY id`, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	defer rows.Close()

	var variants []model.Variant
	for rows.Next() {
		var v model.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Package, &v.Price, &v.UnitsPerPackage); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// SetManufacturerRate sets the discount percentage for a manufacturer.
func SetManufacturerRate(ctx context.Context, q db.Querier, manufacturer string, rate decimal.Decimal) error {
	if err := pricing.ValidateRate(rate); err != nil {
		return err
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO manufacturer_rates (manufacturer, rate) VALUES (?, ?)
		 ON CONFLICT (manufacturer) DO UPDATE SET rate = excluded.rate`,
		manufacturer, rate.String(),
	)
	if err != nil {
		return fmt.Errorf("setting manufacturer rate: %w", err)
	}
	return nil
}

// GetManufacturerRate returns the rate for a manufacturer and whether one is configured.
func GetManufacturerRate(ctx context.Context, q db.Querier, manufacturer string) (decimal.Decimal, bool, error) {
	var rate decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT rate FROM manufacturer_rates WHERE manufacturer = ?`, manufacturer,
	).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("getting manufacturer rate: %w", err)
	}
	return rate, true, nil
}
