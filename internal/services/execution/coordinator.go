// Package execution turns rebalancing decisions into exchange orders.
package execution

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/metrics"
	"github.com/vadiminshakov/rotor/internal/services/gateway"
)

const (
	defaultAmountDecimals = 8

	SkipPriceUnavailable = "price unavailable"
	SkipLowAmount        = "low trade amount"
)

var hundred = decimal.NewFromInt(100)

type recorder interface {
	Append(entry domain.Entry) int
}

// Config holds execution parameters fixed at startup.
type Config struct {
	Quote     string
	OrderType domain.OrderType
	// SlippagePercent moves buy limits up and sell limits down, e.g. 0.5 for 0.5%.
	SlippagePercent decimal.Decimal
	MinTradeUSD     decimal.Decimal
	// Pairs by exchange symbol. Unknown pairs use 8 amount decimals and no exchange minimum.
	Pairs map[string]domain.PairInfo
}

// Coordinator submits the legs of a decision, sell first, and records every outcome.
// Each surviving leg is submitted exactly once; nothing is retried.
type Coordinator struct {
	gw     gateway.Gateway
	ledger recorder
	cfg    Config
	logger *zap.Logger
	newID  func() string
}

func NewCoordinator(gw gateway.Gateway, ledger recorder, cfg Config, logger *zap.Logger) (*Coordinator, error) {
	if !cfg.OrderType.IsValid() {
		return nil, errors.Errorf("unknown order type %q", cfg.OrderType)
	}
	if cfg.SlippagePercent.IsNegative() || cfg.SlippagePercent.GreaterThanOrEqual(hundred) {
		return nil, errors.Errorf("slippage %s%% out of range", cfg.SlippagePercent)
	}
	if cfg.Quote == "" {
		return nil, errors.New("quote currency is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pairs := make(map[string]domain.PairInfo, len(cfg.Pairs))
	for symbol, info := range cfg.Pairs {
		pairs[symbol] = info
	}
	cfg.Pairs = pairs

	return &Coordinator{
		gw:     gw,
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
	}, nil
}

// Execute runs the sell leg then the buy leg and returns the ledger entries it appended.
// A buy does not wait for the proceeds of the sell to settle.
func (c *Coordinator) Execute(ctx context.Context, decision domain.Decision) []domain.Entry {
	var entries []domain.Entry
	for _, leg := range []*domain.Leg{decision.Sell, decision.Buy} {
		if leg == nil {
			continue
		}
		entry := c.executeLeg(ctx, leg).Seal()
		c.ledger.Append(entry)
		entries = append(entries, entry)
	}
	return entries
}

func (c *Coordinator) executeLeg(ctx context.Context, leg *domain.Leg) domain.Entry {
	kind := domain.EntryKindBuy
	if leg.Side == domain.SideSell {
		kind = domain.EntryKindSell
	}
	logger := c.logger.With(zap.String("asset", leg.Asset), zap.String("side", string(leg.Side)))

	if leg.Skipped() {
		logger.Warn("leg skipped", zap.String("reason", leg.SkipReason), zap.String("notional", leg.Notional.String()))
		return c.skip(kind, leg, leg.SkipReason)
	}

	pair := domain.NewPair(leg.Asset, c.cfg.Quote)
	price, err := c.gw.FetchPrice(ctx, pair)
	if err != nil {
		metrics.FetchFailuresTotal.WithLabelValues("price").Inc()
		logger.Warn("price unavailable, skipping leg", zap.Error(err))
		return c.skip(kind, leg, SkipPriceUnavailable)
	}

	limit := c.limitPrice(leg.Side, price)
	decimals, exchangeMin := c.pairLimits(pair.Symbol())

	var amount decimal.Decimal
	if leg.Side == domain.SideSell {
		amount = leg.Quantity.Truncate(decimals)
		if amount.Mul(price).LessThan(c.cfg.MinTradeUSD) {
			logger.Warn("sell below minimum at current price", zap.String("price", price.String()))
			return c.skip(kind, leg, SkipLowAmount)
		}
	} else {
		amount = leg.QuoteAmount.Div(limit).Truncate(decimals)
	}
	if !amount.IsPositive() {
		logger.Warn("amount rounds to zero", zap.String("price", price.String()))
		return c.skip(kind, leg, SkipLowAmount)
	}
	if exchangeMin.IsPositive() && amount.Mul(limit).LessThan(exchangeMin) {
		logger.Warn("order below exchange minimum",
			zap.String("notional", amount.Mul(limit).String()),
			zap.String("minimum", exchangeMin.String()))
		return c.skip(kind, leg, SkipLowAmount)
	}

	order := domain.Order{
		Pair:          pair,
		Side:          leg.Side,
		Type:          c.cfg.OrderType,
		Amount:        amount,
		Price:         limit,
		ClientOrderID: c.newID(),
	}
	entry := domain.NewEntry(kind, leg.Asset, domain.OutcomeExecuted).
		WithQuote(c.cfg.Quote).
		WithTrade(amount, amount.Mul(limit), limit)

	logger.Info("submitting order", zap.String("order", order.String()), zap.String("client_order_id", order.ClientOrderID))
	result, err := c.gw.SubmitOrder(ctx, order)
	switch {
	case err != nil:
		metrics.OrdersTotal.WithLabelValues(string(leg.Side), string(domain.OutcomeFailed)).Inc()
		logger.Error("order outcome unknown", zap.String("order", order.String()), zap.Error(err))
		entry.Outcome = domain.OutcomeFailed
		return entry.WithNote(err.Error()).WithReference(order.ClientOrderID)
	case !result.Accepted:
		metrics.OrdersTotal.WithLabelValues(string(leg.Side), string(domain.OutcomeRejected)).Inc()
		logger.Warn("order rejected", zap.String("order", order.String()), zap.String("reason", result.Reason))
		entry.Outcome = domain.OutcomeRejected
		return entry.WithNote(result.Reason).WithReference(order.ClientOrderID)
	default:
		metrics.OrdersTotal.WithLabelValues(string(leg.Side), string(domain.OutcomeExecuted)).Inc()
		logger.Info("order accepted", zap.String("order", order.String()), zap.String("reference", result.Reference))
		return entry.WithReference(result.Reference)
	}
}

func (c *Coordinator) skip(kind domain.EntryKind, leg *domain.Leg, reason string) domain.Entry {
	metrics.OrdersTotal.WithLabelValues(string(leg.Side), string(domain.OutcomeSkipped)).Inc()
	amount := leg.Quantity
	if leg.Side == domain.SideBuy {
		amount = decimal.Zero
	}
	return domain.NewEntry(kind, leg.Asset, domain.OutcomeSkipped).
		WithQuote(c.cfg.Quote).
		WithTrade(amount, leg.Notional, decimal.Zero).
		WithNote(reason)
}

// pairLimits returns the amount decimals and the minimum order notional for symbol.
func (c *Coordinator) pairLimits(symbol string) (int32, decimal.Decimal) {
	info, ok := c.cfg.Pairs[symbol]
	if !ok {
		return defaultAmountDecimals, decimal.Zero
	}
	return info.BaseDecimals, info.MinimumNotional()
}

// limitPrice biases buys above and sells below the last price.
func (c *Coordinator) limitPrice(side domain.Side, price decimal.Decimal) decimal.Decimal {
	offset := c.cfg.SlippagePercent.Div(hundred)
	if side == domain.SideBuy {
		return price.Mul(decimal.NewFromInt(1).Add(offset))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(offset))
}
