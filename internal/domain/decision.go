package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rule identifies which step of the rebalancing ladder produced a decision.
type Rule string

const (
	RuleNone         Rule = "none"
	RuleDiversify    Rule = "diversify"
	RuleTrimHoldings Rule = "trim_holdings"
	RuleRotate       Rule = "rotate"
)

// Leg one side of a rebalancing decision.
type Leg struct {
	Asset string
	Side  Side
	// Quantity base-asset amount to sell. Zero for buy legs.
	Quantity decimal.Decimal
	// QuoteAmount quote-currency budget to spend. Zero for sell legs.
	QuoteAmount decimal.Decimal
	// Notional estimated value in quote currency at decision time.
	Notional decimal.Decimal
	// SkipReason non-empty when the leg was downgraded to no action.
	SkipReason string
}

// Skipped reports whether the leg was downgraded.
func (l *Leg) Skipped() bool {
	return l != nil && l.SkipReason != ""
}

// Decision the outcome of one policy evaluation. Both legs nil means no action.
type Decision struct {
	Rule Rule
	Sell *Leg
	Buy  *Leg
}

// NoAction reports whether the decision carries no legs at all.
func (d Decision) NoAction() bool {
	return d.Sell == nil && d.Buy == nil
}

// String returns a short label suitable for the latest-action indicator.
func (d Decision) String() string {
	if d.NoAction() {
		return "No action"
	}
	label := string(d.Rule) + ":"
	if d.Sell != nil {
		label += fmt.Sprintf(" sell %s %s", d.Sell.Quantity.String(), d.Sell.Asset)
		if d.Sell.Skipped() {
			label += " (skipped)"
		}
	}
	if d.Buy != nil {
		label += fmt.Sprintf(" buy %s for %s", d.Buy.Asset, d.Buy.QuoteAmount.StringFixed(2))
		if d.Buy.Skipped() {
			label += " (skipped)"
		}
	}
	return label
}
