package tools

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RoundToIncrement snaps a quantity to the nearest multiple of the tradeable
// increment, rounding half up so repeated rebalances don't systematically
// under-trade.
func RoundToIncrement(quantity, increment float64) float64 {
	if increment <= 0 {
		increment = 1
	}
	q := decimal.NewFromFloat(quantity)
	step := decimal.NewFromFloat(increment)
	k := q.Div(step).Round(0)
	v, _ := k.Mul(step).Float64()
	return v
}

// NotionalToShares converts a currency value into a share count at the given
// quote price, snapped to the instrument's quantity increment.
func NotionalToShares(notional, price, increment float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("non-positive quote price %f", price)
	}
	return RoundToIncrement(notional/price, increment), nil
}

// SharesToNotional is the inverse translation, for brokers that only accept
// currency values.
func SharesToNotional(shares, price float64) float64 {
	v, _ := decimal.NewFromFloat(shares).Mul(decimal.NewFromFloat(price)).Float64()
	return v
}
