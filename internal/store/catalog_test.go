package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/model"
)

func TestProductsAndVariants(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := setupFixture(t, database)

	p, err := GetProduct(ctx, database, f.product.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Acme", p.Manufacturer)
	assert.Equal(t, 12, p.UnitsPerPackage)
	assert.True(t, p.WholesalePrice.Equal(decimal.NewFromInt(100)))

	v, err := GetVariant(ctx, database, f.variant.ID)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, f.product.ID, v.ProductID)
	assert.True(t, v.Price.Equal(decimal.RequireFromString("950.5")))

	variants, err := ListVariants(ctx, database, f.product.ID)
	require.NoError(t, err)
	assert.Len(t, variants, 1)

	missing, err := GetProduct(ctx, database, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	missingVariant, err := GetVariant(ctx, database, 999)
	require.NoError(t, err)
	assert.Nil(t, missingVariant)
}

func TestCreateProduct_DefaultsUnitsPerPackage(t *testing.T) {
	database := db.NewTestDB(t)

	p, err := CreateProduct(context.Background(), database, model.Product{Name: "Grout"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.UnitsPerPackage)
}

func TestManufacturerRate(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, ok, err := GetManufacturerRate(ctx, database, "Acme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetManufacturerRate(ctx, database, "Acme", decimal.NewFromInt(10)))
	require.NoError(t, SetManufacturerRate(ctx, database, "Acme", decimal.RequireFromString("12.5")))

	rate, ok, err := GetManufacturerRate(ctx, database, "Acme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rate.Equal(decimal.RequireFromString("12.5")))

	assert.Error(t, SetManufacturerRate(ctx, database, "Acme", decimal.NewFromInt(101)))
	assert.Error(t, SetManufacturerRate(ctx, database, "Acme", decimal.NewFromInt(-1)))
}

func TestWarehouses(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := setupFixture(t, database)

	_, err := CreateWarehouse(ctx, database, "Bad", "garage")
	assert.Error(t, err)

	all, err := ListWarehouses(ctx, database, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	retail, err := ListWarehouses(ctx, database, model.WarehouseRetail)
	require.NoError(t, err)
	require.Len(t, retail, 1)
	assert.Equal(t, f.dst.ID, retail[0].ID)

	w, err := GetWarehouse(ctx, database, 999)
	require.NoError(t, err)
	assert.Nil(t, w)
}
