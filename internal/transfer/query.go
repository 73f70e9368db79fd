package transfer

import (
	"context"

	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
)

// Filter narrows ListTransfers.
type Filter = store.TransferFilter

// GetTransfer returns a transfer with its lines.
func (e *Engine) GetTransfer(ctx context.Context, id int64) (*model.Transfer, error) {
	t, err := store.GetTransfer(ctx, e.db, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, notFoundf("transfer %d", id)
	}
	return t, nil
}

// ListTransfers returns transfer headers, newest first.
func (e *Engine) ListTransfers(ctx context.Context, f Filter) ([]model.Transfer, error) {
	if f.Status != "" && f.Status != model.StatusActive && f.Status != model.StatusCancelled {
		return nil, invalidf("unknown status %q", f.Status)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, invalidf("limit and offset cannot be negative")
	}
	return store.ListTransfers(ctx, e.db, f)
}
