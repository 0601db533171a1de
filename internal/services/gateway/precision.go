package gateway

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	oneCent = decimal.RequireFromString("0.01")
)

// PricePrecision picks decimal places by magnitude: cheap assets need finer steps.
func PricePrecision(price decimal.Decimal) int32 {
	switch {
	case price.GreaterThanOrEqual(one):
		return 2
	case price.GreaterThanOrEqual(oneCent):
		return 5
	default:
		return 8
	}
}

// RoundPrice rounds price to the given precision, or by magnitude when precision < 0.
func RoundPrice(price decimal.Decimal, precision int32) decimal.Decimal {
	if precision < 0 {
		precision = PricePrecision(price)
	}
	return price.Round(precision)
}
