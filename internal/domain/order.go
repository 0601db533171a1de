package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Order is a single request to the exchange. It is submitted at most once.
type Order struct {
	Pair Pair
	Side Side
	Type OrderType
	// Amount quantity of the base asset.
	Amount decimal.Decimal
	// Price limit price in quote currency, ignored for market orders.
	Price decimal.Decimal
	// ClientOrderID caller-generated id echoed by the exchange.
	ClientOrderID string
}

// String returns a human-readable string representation.
func (o Order) String() string {
	return fmt.Sprintf("%s %s %s %s @ %s", o.Type, o.Side, o.Amount.String(), o.Pair.String(), o.Price.String())
}

// OrderResult outcome reported by the exchange for a submitted order.
type OrderResult struct {
	Accepted bool
	// Reference exchange order id, set when accepted.
	Reference string
	// Reason exchange-provided rejection reason.
	Reason string
}
