package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/model"
)

// TransferFilter narrows ListTransfers. Zero values match everything.
type TransferFilter struct {
	// WarehouseID matches transfers with it as source or destination.
	WarehouseID int64
	Status      string
	Limit       int
	Offset      int
}

const transferColumns = `id, source_warehouse_id, destination_warehouse_id, status, total_amount,
	note, created_by, request_key, created_at, cancelled_at`

const lineColumns = `id, transfer_id, product_id, variant_id, quantity, dest_quantity,
	from_quantity, to_quantity, unit_price, price_addition, final_price, status, cancelled_at`

// InsertTransfer records a transfer and its lines, filling in their IDs.
// It must run in the same transaction as the stock changes it describes.
func InsertTransfer(ctx context.Context, q db.Querier, t *model.Transfer) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = model.StatusActive
	}

	err := q.QueryRowContext(ctx,
		`INSERT INTO transfers (source_warehouse_id, destination_warehouse_id, status, total_amount,
		                        note, created_by, request_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.SourceWarehouseID, t.DestinationWarehouseID, t.Status, t.TotalAmount.String(),
		nullString(t.Note), nullString(t.CreatedBy), nullString(t.RequestKey), t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("recording transfer: %w", err)
	}

	for i := range t.Lines {
		l := &t.Lines[i]
		l.TransferID = t.ID
		if l.Status == "" {
			l.Status = model.StatusActive
		}
		err := q.QueryRowContext(ctx,
			`INSERT INTO transfer_lines (transfer_id, product_id, variant_id, quantity, dest_quantity,
			                             from_quantity, to_quantity, unit_price, price_addition, final_price, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			l.TransferID, l.ProductID, variantKey(l.Variant), l.Quantity, l.DestQuantity,
			l.FromQuantity, l.ToQuantity, l.UnitPrice.String(), l.PriceAddition.String(), l.FinalPrice.String(), l.Status,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("recording transfer line: %w", err)
		}
	}
	return nil
}

// GetTransfer returns a transfer with all of its lines, or nil if it does not exist.
func GetTransfer(ctx context.Context, q db.Querier, id int64) (*model.Transfer, error) {
	t, err := getTransfer(ctx, q, `WHERE id = ?`, id)
	if err != nil || t == nil {
		return t, err
	}
	if t.Lines, err = ListLines(ctx, q, t.ID, ""); err != nil {
		return nil, err
	}
	return t, nil
}

// LockTransfer returns a transfer header (without lines) and, on Postgres,
// locks its row until the transaction ends.
func LockTransfer(ctx context.Context, q db.Querier, id int64) (*model.Transfer, error) {
	return getTransfer(ctx, q, `WHERE id = ?`+q.Dialect().ForUpdate(), id)
}

// GetTransferByRequestKey returns the transfer committed under an idempotency
// key, with its lines, or nil if there is none.
func GetTransferByRequestKey(ctx context.Context, q db.Querier, key string) (*model.Transfer, error) {
	t, err := getTransfer(ctx, q, `WHERE request_key = ?`, key)
	if err != nil || t == nil {
		return t, err
	}
	if t.Lines, err = ListLines(ctx, q, t.ID, ""); err != nil {
		return nil, err
	}
	return t, nil
}

func getTransfer(ctx context.Context, q db.Querier, where string, args ...any) (*model.Transfer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers `+where, args...)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer: %w", err)
	}
	return t, nil
}

// ListTransfers returns transfer headers, newest first.
func ListTransfers(ctx context.Context, q db.Querier, f TransferFilter) ([]model.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE 1 = 1`
	var args []any
	if f.WarehouseID != 0 {
		query += ` AND (source_warehouse_id = ? OR destination_warehouse_id = ?)`
		args = append(args, f.WarehouseID, f.WarehouseID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// GetLine returns a transfer line, or nil if it does not exist.
func GetLine(ctx context.Context, q db.Querier, id int64) (*model.TransferLine, error) {
	return getLine(ctx, q, id, "")
}

// LockLine returns a transfer line and, on Postgres, locks its row.
func LockLine(ctx context.Context, q db.Querier, id int64) (*model.TransferLine, error) {
	return getLine(ctx, q, id, q.Dialect().ForUpdate())
}

func getLine(ctx context.Context, q db.Querier, id int64, lock string) (*model.TransferLine, error) {
	row := q.QueryRowContext(ctx, `SELECT `+lineColumns+` FROM transfer_lines WHERE id = ?`+lock, id)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer line: %w", err)
	}
	return l, nil
}

// ListLines returns the lines of a transfer in insertion order, optionally
// only those with the given status.
func ListLines(ctx context.Context, q db.Querier, transferID int64, status string) ([]model.TransferLine, error) {
	query := `SELECT ` + lineColumns + ` FROM transfer_lines WHERE transfer_id = ?`
	args := []any{transferID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transfer lines: %w", err)
	}
	defer rows.Close()

	var lines []model.TransferLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transfer line: %w", err)
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

// MarkLineCancelled moves an active line to cancelled. It reports false if
// the line was not active, so two concurrent cancellations cannot both win.
func MarkLineCancelled(ctx context.Context, q db.Querier, id int64, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE transfer_lines SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`,
		model.StatusCancelled, at, id, model.StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("cancelling transfer line: %w", err)
	}
	return affectedOne(res)
}

// MarkTransferCancelled moves an active transfer to cancelled, reporting
// false if it was not active.
func MarkTransferCancelled(ctx context.Context, q db.Querier, id int64, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE transfers SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`,
		model.StatusCancelled, at, id, model.StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("cancelling transfer: %w", err)
	}
	return affectedOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(s scanner) (*model.Transfer, error) {
	t := &model.Transfer{}
	var note, createdBy, requestKey sql.NullString
	var cancelledAt sql.NullTime
	if err := s.Scan(&t.ID, &t.SourceWarehouseID, &t.DestinationWarehouseID, &t.Status, &t.TotalAmount,
		&note, &createdBy, &requestKey, &t.CreatedAt, &cancelledAt); err != nil {
		return nil, err
	}
	t.Note = note.String
	t.CreatedBy = createdBy.String
	t.RequestKey = requestKey.String
	if cancelledAt.Valid {
		t.CancelledAt = &cancelledAt.Time
	}
	return t, nil
}

func scanLine(s scanner) (*model.TransferLine, error) {
	l := &model.TransferLine{}
	var key int64
	var cancelledAt sql.NullTime
	if err := s.Scan(&l.ID, &l.TransferID, &l.ProductID, &key, &l.Quantity, &l.DestQuantity,
		&l.FromQuantity, &l.ToQuantity, &l.UnitPrice, &l.PriceAddition, &l.FinalPrice, &l.Status, &cancelledAt); err != nil {
		return nil, err
	}
	variant, err := variantFromKey(key)
	if err != nil {
		return nil, err
	}
	l.Variant = variant
	if cancelledAt.Valid {
		l.CancelledAt = &cancelledAt.Time
	}
	return l, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n == 1, nil
}
