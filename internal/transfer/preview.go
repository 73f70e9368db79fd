package transfer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
)

// Preview evaluates req against current stock without changing anything.
// It returns one verdict per requested line, in request order.
func (e *Engine) Preview(ctx context.Context, req model.TransferRequest) (verdicts []model.LineVerdict, err error) {
	ctx, end := e.start(ctx, "preview",
		attribute.Int64("transfer.source_warehouse_id", req.SourceWarehouseID),
		attribute.Int64("transfer.destination_warehouse_id", req.DestinationWarehouseID),
		attribute.Int("transfer.lines", len(req.Lines)),
	)
	defer end(&err)

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := e.checkWarehouses(ctx, e.db, req); err != nil {
		return nil, err
	}

	resolved, err := e.resolveLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	verdicts, err = evaluate(ctx, req, resolved, func(ctx context.Context, k stockKey) (int, error) {
		return store.QuantityOf(ctx, e.db, k.warehouseID, k.productID, variantOf(k))
	})
	if err != nil {
		return nil, err
	}

	for _, v := range verdicts {
		e.metrics.LineVerdict("preview", string(v.Status), string(v.Reason))
	}
	e.log(ctx).Debug("transfer previewed",
		zap.Int64("source_warehouse_id", req.SourceWarehouseID),
		zap.Int64("destination_warehouse_id", req.DestinationWarehouseID),
		zap.Int("lines", len(verdicts)),
		zap.Int("ok", countOK(verdicts)),
	)
	return verdicts, nil
}

func variantOf(k stockKey) model.VariantRef {
	if k.variantID == 0 {
		return model.BaseVariant()
	}
	return model.VariantOf(k.variantID)
}
