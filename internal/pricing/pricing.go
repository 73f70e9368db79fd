// Package pricing computes transfer line prices.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the full computation behind a final price.
type Breakdown struct {
	Base     decimal.Decimal `json:"base"`
	Discount decimal.Decimal `json:"discount"`
	Final    decimal.Decimal `json:"final"`
}

// Price returns the final price of a line:
//
//	base = (unitPrice + addition) * quantity
//	discount = base * rate / 100
//	final = base - discount
//
// Nothing is rounded; rounding is left to presentation.
func Price(unitPrice decimal.Decimal, quantity int, addition, rate decimal.Decimal) decimal.Decimal {
	return Calculate(unitPrice, quantity, addition, rate).Final
}

// Calculate is Price with the intermediate amounts.
func Calculate(unitPrice decimal.Decimal, quantity int, addition, rate decimal.Decimal) Breakdown {
	base := unitPrice.Add(addition).Mul(decimal.NewFromInt(int64(quantity)))
	discount := base.Mul(rate).Div(hundred)
	return Breakdown{
		Base:     base,
		Discount: discount,
		Final:    base.Sub(discount),
	}
}

// ValidateRate checks that a manufacturer rate is a percentage in [0, 100].
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return fmt.Errorf("rate must be between 0 and 100, got %s", rate)
	}
	return nil
}

// Total sums final prices.
func Total(prices ...decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(prices[0], prices[1:]...)
}
