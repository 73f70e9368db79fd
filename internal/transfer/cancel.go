package transfer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/events"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
)

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	Transfer *model.Transfer `json:"transfer"`
	// Reversed holds the lines whose stock movement was undone by this call.
	Reversed []model.TransferLine `json:"reversed"`
}

// CancelLine reverses one committed line: the source gets its quantity back
// and the destination loses the converted quantity it was credited. The
// parent transfer stays active, even when this was its last active line.
func (e *Engine) CancelLine(ctx context.Context, lineID int64, actor string) (result *CancelResult, err error) {
	ctx, end := e.start(ctx, "cancel_line", attribute.Int64("transfer.line_id", lineID))
	defer end(&err)

	var (
		t        *model.Transfer
		reversed model.TransferLine
	)
	err = e.db.InTx(ctx, func(tx *db.Tx) error {
		// Lock order is transfer, then line, then stock rows, the same as
		// CancelTransfer.
		line, err := store.GetLine(ctx, tx, lineID)
		if err != nil {
			return err
		}
		if line == nil {
			return notFoundf("transfer line %d", lineID)
		}
		if t, err = store.LockTransfer(ctx, tx, line.TransferID); err != nil {
			return err
		}
		if line, err = store.LockLine(ctx, tx, lineID); err != nil {
			return err
		}
		if line.Status == model.StatusCancelled {
			return ErrAlreadyCancelled
		}

		lines := []model.TransferLine{*line}
		if _, err := lockRows(ctx, tx, lineKeys(t, lines)); err != nil {
			return err
		}
		done, err := e.reverse(ctx, tx, t, lines)
		if err != nil {
			return err
		}
		if len(done) == 0 {
			return ErrAlreadyCancelled
		}
		reversed = done[0]
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	e.metrics.Cancelled("line", 1)
	e.log(ctx).Info("transfer line cancelled",
		zap.Int64("transfer_id", t.ID),
		zap.Int64("line_id", reversed.ID),
		zap.Int("quantity", reversed.Quantity),
		zap.Int("dest_quantity", reversed.DestQuantity),
		zap.String("actor", actor),
	)
	e.publish(ctx, events.New(events.TypeLineCancelled, t.ID, actor, events.Cancelled{
		SourceWarehouseID:      t.SourceWarehouseID,
		DestinationWarehouseID: t.DestinationWarehouseID,
		Lines:                  movements([]model.TransferLine{reversed}),
	}))

	full, err := e.GetTransfer(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return &CancelResult{Transfer: full, Reversed: []model.TransferLine{reversed}}, nil
}

// CancelTransfer reverses every still-active line of a transfer and marks
// the transfer cancelled. Lines cancelled earlier are skipped.
func (e *Engine) CancelTransfer(ctx context.Context, transferID int64, actor string) (result *CancelResult, err error) {
	ctx, end := e.start(ctx, "cancel_transfer", attribute.Int64("transfer.id", transferID))
	defer end(&err)

	var (
		t        *model.Transfer
		reversed []model.TransferLine
	)
	err = e.db.InTx(ctx, func(tx *db.Tx) error {
		var err error
		if t, err = store.LockTransfer(ctx, tx, transferID); err != nil {
			return err
		}
		if t == nil {
			return notFoundf("transfer %d", transferID)
		}
		if t.Status == model.StatusCancelled {
			return ErrAlreadyCancelled
		}

		active, err := store.ListLines(ctx, tx, transferID, model.StatusActive)
		if err != nil {
			return err
		}
		if _, err := lockRows(ctx, tx, lineKeys(t, active)); err != nil {
			return err
		}
		if reversed, err = e.reverse(ctx, tx, t, active); err != nil {
			return err
		}

		ok, err := store.MarkTransferCancelled(ctx, tx, transferID, e.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyCancelled
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	e.metrics.Cancelled("transfer", 1)
	e.metrics.Cancelled("line", len(reversed))
	e.log(ctx).Info("transfer cancelled",
		zap.Int64("transfer_id", t.ID),
		zap.Int("reversed_lines", len(reversed)),
		zap.String("actor", actor),
	)
	e.publish(ctx, events.New(events.TypeTransferCancelled, t.ID, actor, events.Cancelled{
		SourceWarehouseID:      t.SourceWarehouseID,
		DestinationWarehouseID: t.DestinationWarehouseID,
		Lines:                  movements(reversed),
	}))

	full, err := e.GetTransfer(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return &CancelResult{Transfer: full, Reversed: reversed}, nil
}

// reverse marks each line cancelled and undoes its stock movement. A line
// that is no longer active is skipped, so no line is ever reversed twice.
func (e *Engine) reverse(ctx context.Context, tx *db.Tx, t *model.Transfer, lines []model.TransferLine) ([]model.TransferLine, error) {
	now := e.now()
	var done []model.TransferLine
	for _, l := range lines {
		ok, err := store.MarkLineCancelled(ctx, tx, l.ID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, err := store.AdjustStock(ctx, tx, t.SourceWarehouseID, l.ProductID, l.Variant, l.Quantity); err != nil {
			return nil, err
		}
		if _, err := store.AdjustStock(ctx, tx, t.DestinationWarehouseID, l.ProductID, l.Variant, -l.DestQuantity); err != nil {
			return nil, err
		}
		l.Status = model.StatusCancelled
		l.CancelledAt = &now
		done = append(done, l)
	}
	return done, nil
}

// lineKeys returns the sorted stock rows touched by reversing lines.
func lineKeys(t *model.Transfer, lines []model.TransferLine) []stockKey {
	seen := make(map[stockKey]bool)
	var keys []stockKey
	for _, l := range lines {
		for _, k := range []stockKey{
			keyOf(t.SourceWarehouseID, l.ProductID, l.Variant),
			keyOf(t.DestinationWarehouseID, l.ProductID, l.Variant),
		} {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sortKeys(keys)
	return keys
}
