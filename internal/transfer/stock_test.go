package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/prenos/internal/model"
)

func TestAdjustStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := AdjustRequest{WarehouseID: env.src.ID, ProductID: env.product.ID, Delta: 25}

	qty, err := env.engine.AdjustStock(ctx, req, "ana")
	require.NoError(t, err)
	assert.Equal(t, 25, qty)

	req.Delta = -30
	qty, err = env.engine.AdjustStock(ctx, req, "ana")
	require.NoError(t, err)
	assert.Equal(t, -5, qty)

	rows, err := env.engine.Stock(ctx, env.src.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, -5, rows[0].Quantity)
	assert.Equal(t, "Tile adhesive", rows[0].ProductName)
}

func TestAdjustStock_Rejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  AdjustRequest
		want error
	}{
		{"zero delta", AdjustRequest{WarehouseID: env.src.ID, ProductID: env.product.ID}, ErrInvalidRequest},
		{"missing warehouse id", AdjustRequest{ProductID: env.product.ID, Delta: 1}, ErrInvalidRequest},
		{"unknown warehouse", AdjustRequest{WarehouseID: 999, ProductID: env.product.ID, Delta: 1}, ErrNotFound},
		{"unknown product", AdjustRequest{WarehouseID: env.src.ID, ProductID: 999, Delta: 1}, ErrNotFound},
		{"unknown variant", AdjustRequest{
			WarehouseID: env.src.ID, ProductID: env.product.ID, Variant: model.VariantOf(999), Delta: 1,
		}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.AdjustStock(ctx, tt.req, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := env.engine.Stock(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
