// Package api exposes the transfer engine over JSON/HTTP.
package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erazemk/prenos/internal/catalog"
	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/metrics"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/transfer"
)

// Options holds the router's dependencies and request limits.
type Options struct {
	DB        *db.DB
	Engine    *transfer.Engine
	Catalog   catalog.Resolver
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	JWTSecret string

	// RateLimit is requests per second across all clients; 0 disables it.
	RateLimit      float64
	RateBurst      int
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	mux := http.NewServeMux()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	transfersHandler := &TransfersHandler{Engine: opts.Engine}
	warehousesHandler := &WarehousesHandler{DB: opts.DB, Engine: opts.Engine}
	productsHandler := &ProductsHandler{DB: opts.DB, Catalog: opts.Catalog}
	stockHandler := &StockHandler{Engine: opts.Engine}

	authMW := AuthMiddleware(opts.JWTSecret)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)
	requireCashier := RequireRole(model.RoleCashier)

	cashier := func(h http.HandlerFunc) http.Handler { return authMW(requireCashier(h)) }
	manager := func(h http.HandlerFunc) http.Handler { return authMW(requireManager(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("GET /healthz", health(opts.DB))
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	// Transfers: preview, execute and history (all roles), cancel (manager+).
	mux.Handle("POST /api/transfers/preview", cashier(transfersHandler.Preview))
	mux.Handle("POST /api/transfers", cashier(transfersHandler.Execute))
	mux.Handle("GET /api/transfers", cashier(transfersHandler.List))
	mux.Handle("GET /api/transfers/{id}", cashier(transfersHandler.Get))
	mux.Handle("POST /api/transfers/{id}/cancel", manager(transfersHandler.CancelTransfer))
	mux.Handle("POST /api/transfers/lines/{id}/cancel", manager(transfersHandler.CancelLine))

	// Warehouses and stock: read (all roles), write (manager+).
	mux.Handle("GET /api/warehouses", cashier(warehousesHandler.List))
	mux.Handle("POST /api/warehouses", manager(warehousesHandler.Create))
	mux.Handle("GET /api/warehouses/{id}/stock", cashier(warehousesHandler.Stock))
	mux.Handle("POST /api/stock/adjust", manager(stockHandler.Adjust))

	// Catalog: read (all roles), write (manager+), rates (admin).
	mux.Handle("GET /api/products/{id}", cashier(productsHandler.Get))
	mux.Handle("POST /api/products", manager(productsHandler.Create))
	mux.Handle("POST /api/products/{id}/variants", manager(productsHandler.CreateVariant))
	mux.Handle("PUT /api/manufacturers/{name}/rate", admin(productsHandler.SetRate))

	var h http.Handler = mux
	h = LoggingMiddleware(opts.Metrics)(h)
	h = LimitMiddleware(opts.MaxBodyBytes, opts.RequestTimeout)(h)
	h = RateLimitMiddleware(rate.Limit(opts.RateLimit), opts.RateBurst)(h)
	h = RequestIDMiddleware(opts.Logger)(h)
	h = TracingMiddleware(h)
	return h
}

func health(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.SQL().PingContext(r.Context()); err != nil {
			jsonError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
		jsonResponse(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
