// Package transfer moves stock between warehouses: it previews, commits and
// cancels transfers against the stock ledger.
package transfer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erazemk/prenos/internal/catalog"
	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/events"
	"github.com/erazemk/prenos/internal/logger"
	"github.com/erazemk/prenos/internal/metrics"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
)

// Engine runs transfer operations. It is safe for concurrent use; all
// coordination between concurrent requests happens in the database.
type Engine struct {
	db        *db.DB
	catalog   catalog.Resolver
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where lifecycle events go. The default discards them.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine over database, resolving products through resolver.
func New(database *db.DB, resolver catalog.Resolver, opts ...Option) *Engine {
	e := &Engine{
		db:        database,
		catalog:   resolver,
		publisher: events.Nop{},
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("github.com/erazemk/prenos/internal/transfer"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, e.logger)
}

// start opens a span and returns a function that ends it, recording err and
// the operation duration.
func (e *Engine) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	begin := time.Now()
	ctx, span := e.tracer.Start(ctx, "transfer."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		err := *errp
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			code := Code(err)
			if code != "" {
				span.SetAttributes(attribute.String("transfer.error_code", code))
			}
			if code == ErrConcurrencyConflict.Code {
				e.metrics.Conflict(op)
			}
		}
		span.End()
		e.metrics.ObserveOperation(op, err, time.Since(begin))
	}
}

// publish delivers events after the database commit. Failures are logged
// and never undo the committed work.
func (e *Engine) publish(ctx context.Context, evs ...events.Event) {
	if err := e.publisher.Publish(ctx, evs...); err != nil {
		e.log(ctx).Warn("publishing transfer events failed", zap.Error(err))
	}
}

// checkWarehouses verifies that source and destination exist.
func (e *Engine) checkWarehouses(ctx context.Context, q db.Querier, req model.TransferRequest) error {
	for _, id := range []int64{req.SourceWarehouseID, req.DestinationWarehouseID} {
		w, err := store.GetWarehouse(ctx, q, id)
		if err != nil {
			return err
		}
		if w == nil {
			return notFoundf("warehouse %d", id)
		}
	}
	return nil
}

// validateRequest checks the shape of a request before any lookups.
func validateRequest(req model.TransferRequest) error {
	if req.SourceWarehouseID <= 0 || req.DestinationWarehouseID <= 0 {
		return invalidf("source and destination warehouses are required")
	}
	if req.SourceWarehouseID == req.DestinationWarehouseID {
		return invalidf("source and destination warehouse must differ")
	}
	if len(req.Lines) == 0 {
		return invalidf("at least one line is required")
	}
	for i, l := range req.Lines {
		if l.ProductID <= 0 {
			return invalidf("line %d: product_id is required", i+1)
		}
		if l.Quantity <= 0 {
			return invalidf("line %d: quantity must be positive", i+1)
		}
		if l.PriceAddition.IsNegative() {
			return invalidf("line %d: price_addition cannot be negative", i+1)
		}
	}
	return nil
}
