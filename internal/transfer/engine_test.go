package transfer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erazemk/prenos/internal/catalog"
	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/events"
	"github.com/erazemk/prenos/internal/logger"
	"github.com/erazemk/prenos/internal/metrics"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// testEnv is a wholesale warehouse, a retail warehouse and one product with
// a variant, sold by a manufacturer with a 10% transfer rate.
type testEnv struct {
	t      *testing.T
	db     *db.DB
	engine *Engine
	pub    *recordingPublisher
	logs   *observer.ObservedLogs

	src, dst *model.Warehouse
	product  *model.Product
	variant  *model.Variant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	database := db.NewTestDB(t)

	src, err := store.CreateWarehouse(ctx, database, "Central", model.WarehouseWholesale)
	require.NoError(t, err)
	dst, err := store.CreateWarehouse(ctx, database, "Showroom", model.WarehouseRetail)
	require.NoError(t, err)

	p, err := store.CreateProduct(ctx, database, model.Product{
		Name:             "Tile adhesive",
		Manufacturer:     "Acme",
		WholesalePackage: "carton",
		WholesalePrice:   decimal.NewFromInt(100),
		RetailPackage:    "bag",
		UnitsPerPackage:  12,
	})
	require.NoError(t, err)
	v, err := store.CreateVariant(ctx, database, model.Variant{
		ProductID:       p.ID,
		Package:         "pallet",
		Price:           decimal.RequireFromString("950.50"),
		UnitsPerPackage: 120,
	})
	require.NoError(t, err)
	require.NoError(t, store.SetManufacturerRate(ctx, database, "Acme", decimal.NewFromInt(10)))

	core, logs := observer.New(zap.DebugLevel)
	pub := &recordingPublisher{}
	engine := New(database, catalog.NewSQLResolver(database),
		WithPublisher(pub),
		WithMetrics(metrics.New()),
		WithLogger(zap.New(core)),
		WithClock(func() time.Time { return testNow }),
	)

	return &testEnv{
		t: t, db: database, engine: engine, pub: pub, logs: logs,
		src: src, dst: dst, product: p, variant: v,
	}
}

func (env *testEnv) stock(warehouseID int64, variant model.VariantRef, qty int) {
	env.t.Helper()
	_, err := store.AdjustStock(context.Background(), env.db, warehouseID, env.product.ID, variant, qty)
	require.NoError(env.t, err)
}

func (env *testEnv) quantity(warehouseID int64, variant model.VariantRef) int {
	env.t.Helper()
	q, err := store.QuantityOf(context.Background(), env.db, warehouseID, env.product.ID, variant)
	require.NoError(env.t, err)
	return q
}

func (env *testEnv) request(lines ...model.LineRequest) model.TransferRequest {
	return model.TransferRequest{
		SourceWarehouseID:      env.src.ID,
		DestinationWarehouseID: env.dst.ID,
		Lines:                  lines,
	}
}

func (env *testEnv) base(qty int) model.LineRequest {
	return model.LineRequest{ProductID: env.product.ID, Variant: model.BaseVariant(), Quantity: qty}
}

func (env *testEnv) pallet(qty int) model.LineRequest {
	return model.LineRequest{ProductID: env.product.ID, Variant: model.VariantOf(env.variant.ID), Quantity: qty}
}

func TestValidateRequest(t *testing.T) {
	line := model.LineRequest{ProductID: 1, Quantity: 1}
	tests := []struct {
		name string
		req  model.TransferRequest
	}{
		{"missing source", model.TransferRequest{DestinationWarehouseID: 2, Lines: []model.LineRequest{line}}},
		{"same warehouse", model.TransferRequest{SourceWarehouseID: 1, DestinationWarehouseID: 1, Lines: []model.LineRequest{line}}},
		{"no lines", model.TransferRequest{SourceWarehouseID: 1, DestinationWarehouseID: 2}},
		{"missing product", model.TransferRequest{SourceWarehouseID: 1, DestinationWarehouseID: 2,
			Lines: []model.LineRequest{{Quantity: 1}}}},
		{"zero quantity", model.TransferRequest{SourceWarehouseID: 1, DestinationWarehouseID: 2,
			Lines: []model.LineRequest{{ProductID: 1}}}},
		{"negative quantity", model.TransferRequest{SourceWarehouseID: 1, DestinationWarehouseID: 2,
			Lines: []model.LineRequest{{ProductID: 1, Quantity: -3}}}},
		{"negative addition", model.TransferRequest{SourceWarehouseID: 1, DestinationWarehouseID: 2,
			Lines: []model.LineRequest{{ProductID: 1, Quantity: 1, PriceAddition: decimal.NewFromInt(-1)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Equal(t, "INVALID_INPUT", Code(err))
		})
	}

	assert.NoError(t, validateRequest(model.TransferRequest{
		SourceWarehouseID: 1, DestinationWarehouseID: 2, Lines: []model.LineRequest{line},
	}))
}

func TestEngine_LogsThroughContextLogger(t *testing.T) {
	env := newTestEnv(t)
	env.stock(env.src.ID, model.BaseVariant(), 5)

	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core))

	_, err := env.engine.Commit(ctx, env.request(env.base(1)), CommitOptions{CreatedBy: "ana"})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("transfer committed").Len())
	assert.Zero(t, env.logs.FilterMessage("transfer committed").Len())
}

func TestEngine_PublishFailureDoesNotFailCommit(t *testing.T) {
	env := newTestEnv(t)
	env.stock(env.src.ID, model.BaseVariant(), 5)
	env.pub.err = assert.AnError

	res, err := env.engine.Commit(context.Background(), env.request(env.base(2)), CommitOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CommittedLineCount())
	assert.Equal(t, 3, env.quantity(env.src.ID, model.BaseVariant()))
	assert.Equal(t, 1, env.logs.FilterMessage("publishing transfer events failed").Len())
}
