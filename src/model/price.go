package model

import "github.com/shopspring/decimal"

// Prices maps a symbol to its latest known price. A missing key means the
// price is unknown, never zero.
type Prices map[string]decimal.Decimal

// Get returns the price for symbol when it is known and positive.
func (p Prices) Get(symbol string) (decimal.Decimal, bool) {
	v, ok := p[symbol]
	if !ok || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}
