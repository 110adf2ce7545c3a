// Package metrics derives position figures from a quote. It is pure
// computation: no I/O, no clock, no cache.
package metrics

import (
	"github.com/shopspring/decimal"

	"stockview/internal/market"
)

// Derived holds the per-position numbers computed from one quote.
//
// DailyChangePct is nil when the previous close is zero or negative; that is
// bad upstream data, not a reason to divide by it. TargetDelta is nil when
// the quote carries no analyst target. Formatting either absence as "N/A" is
// the presentation layer's business, not this package's.
type Derived struct {
	PositionValue  decimal.Decimal
	DailyChangeAbs decimal.Decimal
	DailyChangePct *decimal.Decimal
	TargetDelta    *decimal.Decimal
}

// Compute derives metrics for holding shares of the quoted instrument.
// PositionValue is rounded to 2 places, half away from zero.
func Compute(q market.Quote, shares decimal.Decimal) Derived {
	price := decimal.NewFromFloat(q.Price)
	prevClose := decimal.NewFromFloat(q.PrevClose)

	d := Derived{
		PositionValue:  shares.Mul(price).Round(2),
		DailyChangeAbs: price.Sub(prevClose),
	}
	if prevClose.IsPositive() {
		pct := d.DailyChangeAbs.Div(prevClose).Mul(decimal.NewFromInt(100))
		d.DailyChangePct = &pct
	}
	if q.AnalystTarget != nil {
		delta := decimal.NewFromFloat(*q.AnalystTarget).Sub(price)
		d.TargetDelta = &delta
	}
	return d
}
