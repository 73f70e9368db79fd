package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/erazemk/prenos/internal/catalog"
	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
)

type featureContext struct {
	t          *testing.T
	db         *db.DB
	engine     *Engine
	warehouses map[string]int64
	products   map[string]int64

	verdicts []model.LineVerdict
	result   *Result
	err      error
}

func (c *featureContext) reset() {
	c.db = db.NewTestDB(c.t)
	c.engine = New(c.db, catalog.NewSQLResolver(c.db))
	c.warehouses = make(map[string]int64)
	c.products = make(map[string]int64)
	c.verdicts, c.result, c.err = nil, nil, nil
}

func (c *featureContext) warehousesExist(wholesale, retail string) error {
	ctx := context.Background()
	w, err := store.CreateWarehouse(ctx, c.db, wholesale, model.WarehouseWholesale)
	if err != nil {
		return err
	}
	r, err := store.CreateWarehouse(ctx, c.db, retail, model.WarehouseRetail)
	if err != nil {
		return err
	}
	c.warehouses[wholesale], c.warehouses[retail] = w.ID, r.ID
	return nil
}

func (c *featureContext) productExists(name, manufacturer string, price, units int) error {
	p, err := store.CreateProduct(context.Background(), c.db, model.Product{
		Name:            name,
		Manufacturer:    manufacturer,
		WholesalePrice:  decimal.NewFromInt(int64(price)),
		UnitsPerPackage: units,
	})
	if err != nil {
		return err
	}
	c.products[name] = p.ID
	return nil
}

func (c *featureContext) manufacturerRate(manufacturer string, rate int) error {
	return store.SetManufacturerRate(context.Background(), c.db, manufacturer, decimal.NewFromInt(int64(rate)))
}

func (c *featureContext) warehouseStocks(warehouse string, qty int, product string) error {
	_, err := store.AdjustStock(context.Background(), c.db,
		c.warehouses[warehouse], c.products[product], model.BaseVariant(), qty)
	return err
}

func (c *featureContext) request(qty int, product, from, to string) model.TransferRequest {
	return model.TransferRequest{
		SourceWarehouseID:      c.warehouses[from],
		DestinationWarehouseID: c.warehouses[to],
		Lines:                  []model.LineRequest{{ProductID: c.products[product], Quantity: qty}},
	}
}

func (c *featureContext) iPreview(qty int, product, from, to string) error {
	c.verdicts, c.err = c.engine.Preview(context.Background(), c.request(qty, product, from, to))
	return c.err
}

func (c *featureContext) iTransfer(qty int, product, from, to string) error {
	c.result, c.err = c.engine.Commit(context.Background(), c.request(qty, product, from, to), CommitOptions{})
	if c.result != nil {
		c.verdicts = c.result.Verdicts
	}
	return nil
}

func (c *featureContext) iCancelLine(n int) error {
	if c.result == nil || n > len(c.result.Transfer.Lines) {
		return fmt.Errorf("no line %d to cancel", n)
	}
	_, c.err = c.engine.CancelLine(context.Background(), c.result.Transfer.Lines[n-1].ID, "")
	return nil
}

func (c *featureContext) iCancelTheTransfer() error {
	if c.result == nil {
		return errors.New("no transfer to cancel")
	}
	_, c.err = c.engine.CancelTransfer(context.Background(), c.result.TransferID(), "")
	return nil
}

func (c *featureContext) transferCommitted(lines int) error {
	if c.err != nil {
		return c.err
	}
	if got := c.result.CommittedLineCount(); got != lines {
		return fmt.Errorf("committed %d lines, want %d", got, lines)
	}
	return nil
}

func (c *featureContext) linePriced(price string) error {
	want := decimal.RequireFromString(price)
	got := c.result.Transfer.Lines[0].FinalPrice
	if !got.Equal(want) {
		return fmt.Errorf("line priced %s, want %s", got, want)
	}
	return nil
}

func (c *featureContext) stockIs(warehouse string, want int, product string) error {
	got, err := store.QuantityOf(context.Background(), c.db,
		c.warehouses[warehouse], c.products[product], model.BaseVariant())
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%s holds %d, want %d", warehouse, got, want)
	}
	return nil
}

func (c *featureContext) lineRejected(n int, reason string, available int) error {
	if n > len(c.verdicts) {
		return fmt.Errorf("no verdict for line %d", n)
	}
	v := c.verdicts[n-1]
	if v.Status != model.VerdictRejected || string(v.Reason) != reason {
		return fmt.Errorf("line %d is %s/%s, want rejected/%s", n, v.Status, v.Reason, reason)
	}
	if v.FromQuantity != available {
		return fmt.Errorf("line %d saw %d available, want %d", n, v.FromQuantity, available)
	}
	return nil
}

func (c *featureContext) failsWith(code string) error {
	if got := Code(c.err); got != code {
		return fmt.Errorf("error code %q (%v), want %q", got, c.err, code)
	}
	return nil
}

func (c *featureContext) transferCancelled() error {
	if c.err != nil {
		return c.err
	}
	t, err := c.engine.GetTransfer(context.Background(), c.result.TransferID())
	if err != nil {
		return err
	}
	if t.Status != model.StatusCancelled {
		return fmt.Errorf("transfer is %s", t.Status)
	}
	return nil
}

func initializeScenario(t *testing.T) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		c := &featureContext{t: t}

		ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
			c.reset()
			return ctx, nil
		})

		ctx.Step(`^a wholesale warehouse "([^"]*)" and a retail warehouse "([^"]*)"$`, c.warehousesExist)
		ctx.Step(`^a product "([^"]*)" from "([^"]*)" priced (\d+) with (\d+) units per package$`, c.productExists)
		ctx.Step(`^manufacturer "([^"]*)" has a transfer rate of (\d+) percent$`, c.manufacturerRate)
		ctx.Step(`^"([^"]*)" stocks (\d+) of "([^"]*)"$`, c.warehouseStocks)
		ctx.Step(`^"([^"]*)" holds (\d+) of "([^"]*)"$`, c.stockIs)
		ctx.Step(`^I preview (\d+) of "([^"]*)" from "([^"]*)" to "([^"]*)"$`, c.iPreview)
		ctx.Step(`^I transfer (\d+) of "([^"]*)" from "([^"]*)" to "([^"]*)"$`, c.iTransfer)
		ctx.Step(`^I cancel line (\d+) of the transfer$`, c.iCancelLine)
		ctx.Step(`^I cancel the transfer$`, c.iCancelTheTransfer)
		ctx.Step(`^the transfer is committed with (\d+) lines?$`, c.transferCommitted)
		ctx.Step(`^the line is priced (\S+)$`, c.linePriced)
		ctx.Step(`^line (\d+) is rejected as "([^"]*)" with (-?\d+) available$`, c.lineRejected)
		ctx.Step(`^the (?:transfer|cancellation) fails with "([^"]*)"$`, c.failsWith)
		ctx.Step(`^the transfer is cancelled$`, c.transferCancelled)
	}
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario(t),
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
