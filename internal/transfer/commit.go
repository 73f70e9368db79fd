package transfer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/events"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
)

// CommitOptions carries request metadata for Commit.
type CommitOptions struct {
	// CreatedBy is recorded on the transfer.
	CreatedBy string
	// RequestKey makes the commit idempotent: a second commit with the same
	// key returns the first transfer and changes nothing.
	RequestKey string
}

// Result is the outcome of Commit.
type Result struct {
	Transfer *model.Transfer
	// Verdicts has one entry per requested line. It is nil for a replay.
	Verdicts []model.LineVerdict
	// Replayed is set when the request key matched an earlier commit.
	Replayed bool
}

// TransferID returns the id of the committed transfer.
func (r *Result) TransferID() int64 { return r.Transfer.ID }

// CommittedLineCount returns how many lines were persisted.
func (r *Result) CommittedLineCount() int { return len(r.Transfer.Lines) }

// Commit re-validates req under row locks and, for every line that
// validates, debits the source and credits the destination, all in one
// transaction. Rejected lines are dropped; the transfer is refused with
// ErrNoValidLines only when no line validates.
func (e *Engine) Commit(ctx context.Context, req model.TransferRequest, opts CommitOptions) (result *Result, err error) {
	ctx, end := e.start(ctx, "commit",
		attribute.Int64("transfer.source_warehouse_id", req.SourceWarehouseID),
		attribute.Int64("transfer.destination_warehouse_id", req.DestinationWarehouseID),
		attribute.Int("transfer.lines", len(req.Lines)),
	)
	defer end(&err)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if opts.RequestKey != "" {
		existing, err := store.GetTransferByRequestKey(ctx, e.db, opts.RequestKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return e.replay(ctx, req, existing)
		}
	}

	if err := e.checkWarehouses(ctx, e.db, req); err != nil {
		return nil, err
	}

	// The catalog does not change during a transfer, so it is read before
	// the transaction to keep the locked section short.
	resolved, err := e.resolveLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	var (
		verdicts []model.LineVerdict
		t        *model.Transfer
	)
	err = e.db.InTx(ctx, func(tx *db.Tx) error {
		locked, err := lockRows(ctx, tx, touchedKeys(req, resolved))
		if err != nil {
			return err
		}

		verdicts, err = evaluate(ctx, req, resolved, func(_ context.Context, k stockKey) (int, error) {
			return locked[k], nil
		})
		if err != nil {
			return err
		}
		if countOK(verdicts) == 0 {
			return ErrNoValidLines
		}

		t = &model.Transfer{
			SourceWarehouseID:      req.SourceWarehouseID,
			DestinationWarehouseID: req.DestinationWarehouseID,
			Status:                 model.StatusActive,
			Note:                   req.Note,
			CreatedBy:              opts.CreatedBy,
			RequestKey:             opts.RequestKey,
			CreatedAt:              e.now(),
		}
		total := decimal.Zero
		for i, v := range verdicts {
			if !v.OK() {
				continue
			}
			if err := move(ctx, tx, req, v); err != nil {
				return err
			}
			total = total.Add(*v.FinalPrice)
			t.Lines = append(t.Lines, model.TransferLine{
				ProductID:     v.ProductID,
				Variant:       v.Variant,
				Quantity:      v.Quantity,
				DestQuantity:  v.DestQuantity,
				FromQuantity:  v.FromQuantity,
				ToQuantity:    v.ToQuantity,
				UnitPrice:     resolved[i].res.UnitPrice,
				PriceAddition: v.PriceAddition,
				FinalPrice:    *v.FinalPrice,
				Status:        model.StatusActive,
			})
		}
		t.TotalAmount = total

		return store.InsertTransfer(ctx, tx, t)
	})
	if err != nil {
		return nil, classify(err)
	}

	for _, v := range verdicts {
		e.metrics.LineVerdict("commit", string(v.Status), string(v.Reason))
	}
	e.metrics.TransferCommitted()
	e.log(ctx).Info("transfer committed",
		zap.Int64("transfer_id", t.ID),
		zap.Int64("source_warehouse_id", t.SourceWarehouseID),
		zap.Int64("destination_warehouse_id", t.DestinationWarehouseID),
		zap.Int("requested_lines", len(req.Lines)),
		zap.Int("committed_lines", len(t.Lines)),
		zap.String("total_amount", t.TotalAmount.String()),
		zap.String("created_by", t.CreatedBy),
	)
	e.publish(ctx, events.New(events.TypeTransferCommitted, t.ID, t.CreatedBy, events.Committed{
		SourceWarehouseID:      t.SourceWarehouseID,
		DestinationWarehouseID: t.DestinationWarehouseID,
		TotalAmount:            t.TotalAmount,
		Lines:                  movements(t.Lines),
	}))

	return &Result{Transfer: t, Verdicts: verdicts}, nil
}

// replay returns an earlier commit made under the same request key.
func (e *Engine) replay(ctx context.Context, req model.TransferRequest, existing *model.Transfer) (*Result, error) {
	if existing.SourceWarehouseID != req.SourceWarehouseID || existing.DestinationWarehouseID != req.DestinationWarehouseID {
		return nil, invalidf("request key %q was used for a different transfer", existing.RequestKey)
	}
	e.log(ctx).Info("transfer commit replayed",
		zap.Int64("transfer_id", existing.ID),
		zap.String("request_key", existing.RequestKey),
	)
	return &Result{Transfer: existing, Replayed: true}, nil
}

// lockRows reads every key under the row-lock discipline, in key order.
func lockRows(ctx context.Context, tx *db.Tx, keys []stockKey) (map[stockKey]int, error) {
	locked := make(map[stockKey]int, len(keys))
	for _, k := range keys {
		q, err := store.LockQuantity(ctx, tx, k.warehouseID, k.productID, variantOf(k))
		if err != nil {
			return nil, err
		}
		locked[k] = q
	}
	return locked, nil
}

// move debits the source and credits the destination for one ok verdict.
func move(ctx context.Context, tx *db.Tx, req model.TransferRequest, v model.LineVerdict) error {
	ok, err := store.DebitStock(ctx, tx, req.SourceWarehouseID, v.ProductID, v.Variant, v.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		// The locked read said the stock was there; another writer that
		// ignores the lock changed it.
		return fmt.Errorf("%w: stock of product %d (%s) changed during commit",
			ErrConcurrencyConflict, v.ProductID, v.Variant)
	}
	_, err = store.AdjustStock(ctx, tx, req.DestinationWarehouseID, v.ProductID, v.Variant, v.DestQuantity)
	return err
}

func movements(lines []model.TransferLine) []events.Movement {
	out := make([]events.Movement, len(lines))
	for i, l := range lines {
		out[i] = events.Movement{
			LineID:       l.ID,
			ProductID:    l.ProductID,
			Variant:      l.Variant.String(),
			Quantity:     l.Quantity,
			DestQuantity: l.DestQuantity,
		}
	}
	return out
}
