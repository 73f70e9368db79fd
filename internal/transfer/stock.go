package transfer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erazemk/prenos/internal/catalog"
	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
)

// AdjustRequest is a manual stock correction, such as a goods receipt or a
// stocktake difference.
type AdjustRequest struct {
	WarehouseID int64            `json:"warehouse_id"`
	ProductID   int64            `json:"product_id"`
	Variant     model.VariantRef `json:"variant_id"`
	Delta       int              `json:"delta"`
}

// AdjustStock applies req.Delta to one stock row and returns the new
// quantity. It takes the same row lock as Commit, so it never interleaves
// with a transfer touching that row.
func (e *Engine) AdjustStock(ctx context.Context, req AdjustRequest, actor string) (qty int, err error) {
	ctx, end := e.start(ctx, "adjust_stock",
		attribute.Int64("stock.warehouse_id", req.WarehouseID),
		attribute.Int64("stock.product_id", req.ProductID),
		attribute.Int("stock.delta", req.Delta),
	)
	defer end(&err)

	if req.WarehouseID <= 0 || req.ProductID <= 0 {
		return 0, invalidf("warehouse_id and product_id are required")
	}
	if req.Delta == 0 {
		return 0, invalidf("delta cannot be zero")
	}

	w, err := store.GetWarehouse(ctx, e.db, req.WarehouseID)
	if err != nil {
		return 0, err
	}
	if w == nil {
		return 0, notFoundf("warehouse %d", req.WarehouseID)
	}
	if _, err := e.catalog.Resolve(ctx, req.ProductID, req.Variant); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return 0, notFoundf("product %d (%s)", req.ProductID, req.Variant)
		}
		return 0, err
	}

	err = e.db.InTx(ctx, func(tx *db.Tx) error {
		if _, err := store.LockQuantity(ctx, tx, req.WarehouseID, req.ProductID, req.Variant); err != nil {
			return err
		}
		qty, err = store.AdjustStock(ctx, tx, req.WarehouseID, req.ProductID, req.Variant, req.Delta)
		return err
	})
	if err != nil {
		return 0, classify(err)
	}

	e.metrics.StockAdjusted()
	e.log(ctx).Info("stock adjusted",
		zap.Int64("warehouse_id", req.WarehouseID),
		zap.Int64("product_id", req.ProductID),
		zap.Stringer("variant", req.Variant),
		zap.Int("delta", req.Delta),
		zap.Int("quantity", qty),
		zap.String("actor", actor),
	)
	return qty, nil
}

// Stock lists the stock rows of a warehouse.
func (e *Engine) Stock(ctx context.Context, warehouseID int64) ([]model.Stock, error) {
	w, err := store.GetWarehouse(ctx, e.db, warehouseID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, notFoundf("warehouse %d", warehouseID)
	}
	return store.ListStock(ctx, e.db, warehouseID)
}
