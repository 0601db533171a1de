package domain

// Side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// String returns the string representation of the side.
func (s Side) String() string {
	return string(s)
}

// OrderType selects between resting limit orders and immediate market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// IsValid reports whether the order type is known.
func (t OrderType) IsValid() bool {
	return t == OrderTypeLimit || t == OrderTypeMarket
}
