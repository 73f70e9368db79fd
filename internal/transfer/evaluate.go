package transfer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/erazemk/prenos/internal/catalog"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/pricing"
)

// stockKey identifies one row of the stock ledger.
type stockKey struct {
	warehouseID int64
	productID   int64
	variantID   int64
}

func keyOf(warehouseID, productID int64, v model.VariantRef) stockKey {
	id, _ := v.ID()
	return stockKey{warehouseID: warehouseID, productID: productID, variantID: id}
}

// sortKeys orders keys the same way for every request, so transactions that
// lock overlapping rows acquire them in the same order.
func sortKeys(keys []stockKey) {
	slices.SortFunc(keys, func(a, b stockKey) int {
		return cmp.Or(
			cmp.Compare(a.warehouseID, b.warehouseID),
			cmp.Compare(a.productID, b.productID),
			cmp.Compare(a.variantID, b.variantID),
		)
	})
}

// resolvedLine is the catalog data for one request line. found is false when
// the product or variant does not exist.
type resolvedLine struct {
	found bool
	res   model.Resolution
	rate  decimal.Decimal
}

// resolveLines looks up every line in the catalog. Lookups that fail for any
// reason other than a missing product abort the whole request.
func (e *Engine) resolveLines(ctx context.Context, lines []model.LineRequest) ([]resolvedLine, error) {
	out := make([]resolvedLine, len(lines))
	rates := make(map[string]decimal.Decimal)

	for i, l := range lines {
		res, err := e.catalog.Resolve(ctx, l.ProductID, l.Variant)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving line %d: %w", i+1, err)
		}

		rate, ok := rates[res.Manufacturer]
		if !ok {
			if rate, err = e.catalog.Rate(ctx, res.Manufacturer); err != nil {
				return nil, fmt.Errorf("resolving line %d: %w", i+1, err)
			}
			rates[res.Manufacturer] = rate
		}
		out[i] = resolvedLine{found: true, res: res, rate: rate}
	}
	return out, nil
}

// touchedKeys returns the sorted, distinct stock rows a request can change.
func touchedKeys(req model.TransferRequest, resolved []resolvedLine) []stockKey {
	seen := make(map[stockKey]bool)
	var keys []stockKey
	for i, l := range req.Lines {
		if !resolved[i].found {
			continue
		}
		for _, k := range []stockKey{
			keyOf(req.SourceWarehouseID, l.ProductID, l.Variant),
			keyOf(req.DestinationWarehouseID, l.ProductID, l.Variant),
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

// quantityReader returns the current quantity of a stock row.
type quantityReader func(ctx context.Context, k stockKey) (int, error)

// evaluate produces one verdict per request line. Preview and Commit both
// call it, so a preview predicts the commit exactly when stock is unchanged.
//
// Lines touching the same stock row share a running balance: each line sees
// the quantity left after the lines before it.
func evaluate(ctx context.Context, req model.TransferRequest, resolved []resolvedLine, read quantityReader) ([]model.LineVerdict, error) {
	balance := make(map[stockKey]int)
	current := func(k stockKey) (int, error) {
		if q, ok := balance[k]; ok {
			return q, nil
		}
		q, err := read(ctx, k)
		if err != nil {
			return 0, err
		}
		balance[k] = q
		return q, nil
	}

	verdicts := make([]model.LineVerdict, len(req.Lines))
	for i, l := range req.Lines {
		r := resolved[i]
		if !r.found {
			verdicts[i] = reject(l, 0, 0, model.ReasonProductNotFound)
			continue
		}

		src := keyOf(req.SourceWarehouseID, l.ProductID, l.Variant)
		dst := keyOf(req.DestinationWarehouseID, l.ProductID, l.Variant)
		from, err := current(src)
		if err != nil {
			return nil, err
		}
		to, err := current(dst)
		if err != nil {
			return nil, err
		}

		switch {
		case from <= 0:
			verdicts[i] = reject(l, from, to, model.ReasonInsufficientStock)
		case l.Quantity > from:
			verdicts[i] = reject(l, from, to, model.ReasonExceedsAvailable)
		default:
			v := accept(l, from, to, r)
			balance[src] -= l.Quantity
			balance[dst] += v.DestQuantity
			verdicts[i] = v
		}
		verdicts[i].Package = r.res.Package
		verdicts[i].RetailPackage = r.res.RetailPackage
	}
	return verdicts, nil
}

func accept(l model.LineRequest, from, to int, r resolvedLine) model.LineVerdict {
	price := pricing.Price(r.res.UnitPrice, l.Quantity, l.PriceAddition, r.rate)
	return model.LineVerdict{
		LineRequest:  l,
		FromQuantity: from,
		ToQuantity:   to,
		DestQuantity: l.Quantity * r.res.UnitsPerPackage,
		Status:       model.VerdictOK,
		FinalPrice:   &price,
	}
}

func reject(l model.LineRequest, from, to int, reason model.RejectReason) model.LineVerdict {
	return model.LineVerdict{
		LineRequest:  l,
		FromQuantity: from,
		ToQuantity:   to,
		Status:       model.VerdictRejected,
		Reason:       reason,
		Message:      reason.Message(),
	}
}

// countOK returns the number of ok verdicts.
func countOK(verdicts []model.LineVerdict) int {
	n := 0
	for _, v := range verdicts {
		if v.OK() {
			n++
		}
	}
	return n
}
