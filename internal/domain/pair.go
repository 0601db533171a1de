// Package domain defines core data structures used throughout the rebalancer.
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pair asset/quote-currency combination.
type Pair struct {
	// Base asset symbol, lowercase.
	Base string
	// Quote currency symbol, lowercase.
	Quote string
}

// NewPair builds a pair with normalized lowercase symbols.
func NewPair(base, quote string) Pair {
	return Pair{Base: strings.ToLower(base), Quote: strings.ToLower(quote)}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated exchange symbol, e.g. btcusd.
func (p Pair) Symbol() string {
	return p.Base + p.Quote
}

// PairInfo describes a pair the exchange reports as tradable.
type PairInfo struct {
	Symbol          string
	BaseDecimals    int32
	CounterDecimals int32
	MinimumOrder    string
}

// MinimumNotional parses the quote amount out of MinimumOrder ("20.0 USD").
// Zero means the exchange reported no usable minimum.
func (p PairInfo) MinimumNotional() decimal.Decimal {
	fields := strings.Fields(p.MinimumOrder)
	if len(fields) == 0 {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(fields[0])
	if err != nil || v.IsNegative() {
		return decimal.Zero
	}
	return v
}
