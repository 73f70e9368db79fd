// Package catalog resolves products and variants to priceable units.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
)

// ErrNotFound is returned when a product does not exist or a variant does not
// belong to the requested product.
var ErrNotFound = errors.New("product not found")

// Resolver is the read side of the product catalog.
type Resolver interface {
	// Resolve returns the unit price and package data for a product or one of its variants.
	Resolve(ctx context.Context, productID int64, variant model.VariantRef) (model.Resolution, error)
	// Rate returns the manufacturer discount percentage, 0 when none is configured.
	Rate(ctx context.Context, manufacturer string) (decimal.Decimal, error)
}

// SQLResolver reads the catalog tables directly.
type SQLResolver struct {
	q db.Querier
}

// NewSQLResolver returns a resolver backed by the catalog tables.
func NewSQLResolver(q db.Querier) *SQLResolver {
	return &SQLResolver{q: q}
}

// Resolve implements Resolver.
func (r *SQLResolver) Resolve(ctx context.Context, productID int64, variant model.VariantRef) (model.Resolution, error) {
	p, err := store.GetProduct(ctx, r.q, productID)
	if err != nil {
		return model.Resolution{}, fmt.Errorf("resolving product %d: %w", productID, err)
	}
	if p == nil {
		return model.Resolution{}, ErrNotFound
	}

	res := model.Resolution{
		ProductID:       p.ID,
		Variant:         variant,
		Name:            p.Name,
		UnitPrice:       p.WholesalePrice,
		Package:         p.WholesalePackage,
		Manufacturer:    p.Manufacturer,
		RetailPackage:   p.RetailPackage,
		UnitsPerPackage: p.UnitsPerPackage,
	}

	id, ok := variant.ID()
	if !ok {
		return res, nil
	}

	v, err := store.GetVariant(ctx, r.q, id)
	if err != nil {
		return model.Resolution{}, fmt.Errorf("resolving variant %d: %w", id, err)
	}
	if v == nil || v.ProductID != p.ID {
		return model.Resolution{}, ErrNotFound
	}

	res.UnitPrice = v.Price
	res.Package = v.Package
	res.UnitsPerPackage = v.UnitsPerPackage
	return res, nil
}

// Rate implements Resolver.
func (r *SQLResolver) Rate(ctx context.Context, manufacturer string) (decimal.Decimal, error) {
	if manufacturer == "" {
		return decimal.Zero, nil
	}
	rate, _, err := store.GetManufacturerRate(ctx, r.q, manufacturer)
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolving rate for %q: %w", manufacturer, err)
	}
	return rate, nil
}
