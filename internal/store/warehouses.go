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

// CreateWarehouse creates a new wholesale or retail warehouse.
func CreateWarehouse(ctx context.Context, q db.Querier, name, kind string) (*model.Warehouse, error) {
	if kind != model.WarehouseWholesale && kind != model.WarehouseRetail {
		return nil, fmt.Errorf("invalid warehouse kind %q", kind)
	}

	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO warehouses (name, kind, created_at) VALUES (?, ?, ?) RETURNING id`,
		name, kind, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating warehouse: %w", err)
	}

	return GetWarehouse(ctx, q, id)
}

// GetWarehouse returns a warehouse by ID, or nil if it does not exist.
func GetWarehouse(ctx context.Context, q db.Querier, id int64) (*model.Warehouse, error) {
	w := &model.Warehouse{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, kind, created_at FROM warehouses WHERE id = ?`, id,
	).Scan(&w.ID, &w.Name, &w.Kind, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting warehouse: %w", err)
	}
	return w, nil
}

// ListWarehouses returns all warehouses, optionally filtered by kind.
func ListWarehouses(ctx context.Context, q db.Querier, kind string) ([]model.Warehouse, error) {
	query := `SELECT id, name, kind, created_at FROM warehouses`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY name`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []model.Warehouse
	for rows.Next() {
		var w model.Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Kind, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning warehouse: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}
