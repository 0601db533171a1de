// Package policy decides what to rebalance each cycle.
//
// Scores follow the signal engine convention: higher means more attractive to hold.
// The lowest-scored held asset is the sell candidate and the highest-scored unheld
// tracked asset is the buy candidate.
package policy

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/services/signal"
)

const (
	SkipLowAmount = "low trade amount"
	SkipNoPrice   = "no price"
)

// Config holds the fixed rebalancing parameters.
type Config struct {
	MinHoldings   int
	MaxHoldings   int
	TradeFraction decimal.Decimal
	MinTradeUSD   decimal.Decimal
}

func (c Config) validate() error {
	if c.MinHoldings < 0 {
		return errors.New("min holdings must not be negative")
	}
	if c.MaxHoldings < c.MinHoldings {
		return errors.Errorf("max holdings %d below min holdings %d", c.MaxHoldings, c.MinHoldings)
	}
	if !c.TradeFraction.IsPositive() || c.TradeFraction.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Errorf("trade fraction %s outside (0, 1]", c.TradeFraction)
	}
	if c.MinTradeUSD.IsNegative() {
		return errors.New("min trade amount must not be negative")
	}
	return nil
}

// Input is everything one evaluation looks at.
type Input struct {
	Balance domain.BalanceSnapshot
	Tracked []string
	// Scores is sparse: assets without a signal are absent.
	Scores map[string]decimal.Decimal
	// Prices are the latest known prices used to value sell legs.
	Prices map[string]decimal.Decimal
}

type Policy struct {
	cfg Config
}

func New(cfg Config) (*Policy, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid policy config")
	}
	return &Policy{cfg: cfg}, nil
}

// Decide applies the first matching rule of the ladder: diversify, trim, rotate.
func (p *Policy) Decide(in Input) domain.Decision {
	tracked := append([]string(nil), in.Tracked...)
	sort.Strings(tracked)

	var held, unheld []string
	for _, asset := range tracked {
		if in.Balance.Held(asset) {
			held = append(held, asset)
		} else {
			unheld = append(unheld, asset)
		}
	}

	switch {
	case len(held) < p.cfg.MinHoldings:
		if len(unheld) == 0 {
			return domain.Decision{Rule: domain.RuleNone}
		}
		return domain.Decision{
			Rule: domain.RuleDiversify,
			Buy:  p.buyLeg(unheld[0], in.Balance),
		}
	case len(held) >= p.cfg.MaxHoldings:
		d := domain.Decision{Rule: domain.RuleTrimHoldings}
		if asset, ok := signal.Lowest(in.Scores, held); ok {
			d.Sell = p.sellLeg(asset, in)
		}
		return d
	default:
		d := domain.Decision{Rule: domain.RuleRotate}
		if asset, ok := signal.Lowest(in.Scores, held); ok {
			d.Sell = p.sellLeg(asset, in)
		}
		if asset, ok := signal.Highest(in.Scores, unheld); ok {
			d.Buy = p.buyLeg(asset, in.Balance)
		}
		return d
	}
}

func (p *Policy) buyLeg(asset string, balance domain.BalanceSnapshot) *domain.Leg {
	amount := balance.Quote().Mul(p.cfg.TradeFraction)
	leg := &domain.Leg{
		Asset:       asset,
		Side:        domain.SideBuy,
		QuoteAmount: amount,
		Notional:    amount,
	}
	if amount.LessThan(p.cfg.MinTradeUSD) || !amount.IsPositive() {
		leg.SkipReason = SkipLowAmount
	}
	return leg
}

func (p *Policy) sellLeg(asset string, in Input) *domain.Leg {
	qty := in.Balance.Available(asset).Mul(p.cfg.TradeFraction)
	leg := &domain.Leg{
		Asset:    asset,
		Side:     domain.SideSell,
		Quantity: qty,
	}
	price, ok := in.Prices[asset]
	if !ok || !price.IsPositive() {
		leg.SkipReason = SkipNoPrice
		return leg
	}
	leg.Notional = qty.Mul(price)
	if leg.Notional.LessThan(p.cfg.MinTradeUSD) {
		leg.SkipReason = SkipLowAmount
	}
	return leg
}
