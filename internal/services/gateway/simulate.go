package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/storage/simstate"
)

const simulateAmountPrecision = 8

type pricer interface {
	LastPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	Symbols(ctx context.Context) ([]string, error)
}

// WalletStore persists the paper wallet between restarts.
type WalletStore interface {
	Load() (*simstate.State, error)
	Save(state simstate.State) error
}

// SimulateGateway is a paper-trading gateway: real public prices, in-memory wallet.
// Orders fill immediately at the current price when their limit is marketable.
type SimulateGateway struct {
	mu       sync.Mutex
	pricer   pricer
	quote    string
	quoteQty decimal.Decimal
	wallet   map[string]decimal.Decimal
	store    WalletStore
	logger   *zap.Logger
}

// NewSimulateGateway creates a paper wallet holding only quoteBalance of the quote currency.
func NewSimulateGateway(pricer pricer, quote string, quoteBalance decimal.Decimal, logger *zap.Logger) *SimulateGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("simulate init",
		zap.String("quote", quote),
		zap.String("balance", quoteBalance.String()))

	return &SimulateGateway{
		pricer:   pricer,
		quote:    strings.ToLower(quote),
		quoteQty: quoteBalance,
		wallet:   make(map[string]decimal.Decimal),
		logger:   logger,
	}
}

// Persist restores a previously saved wallet from store, if there is one, and saves
// the wallet after every fill from now on.
func (g *SimulateGateway) Persist(store WalletStore) error {
	state, err := store.Load()
	if err != nil {
		return errors.Wrap(err, "load paper wallet")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.store = store
	if state == nil {
		return g.store.Save(simstate.NewState(g.quote, g.quoteQty, g.wallet))
	}
	if state.Quote != g.quote {
		return errors.Errorf("paper wallet is in %s, configured quote is %s", state.Quote, g.quote)
	}

	quoteQty, wallet, err := state.Balances()
	if err != nil {
		return err
	}
	g.quoteQty = quoteQty
	g.wallet = wallet
	g.logger.Info("paper wallet restored",
		zap.String("quote_balance", quoteQty.String()),
		zap.Int("assets", len(wallet)),
		zap.Time("saved_at", state.UpdatedAt))
	return nil
}

// FetchBalance returns a snapshot of the paper wallet.
func (g *SimulateGateway) FetchBalance(_ context.Context) (domain.BalanceSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.NewBalanceSnapshot(time.Now().UTC(), g.quote, g.quoteQty, g.wallet), nil
}

// FetchPrice returns the public last price.
func (g *SimulateGateway) FetchPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	price, err := g.pricer.LastPrice(ctx, pair)
	if err != nil {
		return decimal.Decimal{}, unavailable(err, "fetch price %s", pair.Symbol())
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, unavailable(nil, "fetch price %s: non-positive price", pair.Symbol())
	}
	return RoundPrice(price, -1), nil
}

// ListTradablePairs lists every base the price source quotes against the quote currency.
func (g *SimulateGateway) ListTradablePairs(ctx context.Context) (map[string]domain.PairInfo, error) {
	bases, err := g.pricer.Symbols(ctx)
	if err != nil {
		return nil, unavailable(err, "list trading pairs")
	}
	pairs := make(map[string]domain.PairInfo, len(bases))
	for _, base := range bases {
		symbol := domain.NewPair(base, g.quote).Symbol()
		pairs[symbol] = domain.PairInfo{
			Symbol:          symbol,
			BaseDecimals:    simulateAmountPrecision,
			CounterDecimals: -1,
		}
	}
	return pairs, nil
}

// SubmitOrder fills the order against the paper wallet.
func (g *SimulateGateway) SubmitOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	market, err := g.FetchPrice(ctx, order.Pair)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if !order.Amount.IsPositive() {
		return rejected("amount must be positive"), nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	base := order.Pair.Base
	switch order.Side {
	case domain.SideBuy:
		if order.Type == domain.OrderTypeLimit && order.Price.LessThan(market) {
			return rejected("limit price below market"), nil
		}
		cost := order.Amount.Mul(market)
		if cost.GreaterThan(g.quoteQty) {
			return rejected("insufficient " + g.quote + " balance"), nil
		}
		g.quoteQty = g.quoteQty.Sub(cost)
		g.wallet[base] = g.wallet[base].Add(order.Amount)
	case domain.SideSell:
		if order.Type == domain.OrderTypeLimit && order.Price.GreaterThan(market) {
			return rejected("limit price above market"), nil
		}
		if order.Amount.GreaterThan(g.wallet[base]) {
			return rejected("insufficient " + base + " balance"), nil
		}
		g.wallet[base] = g.wallet[base].Sub(order.Amount)
		g.quoteQty = g.quoteQty.Add(order.Amount.Mul(market))
	default:
		return rejected("unknown side " + string(order.Side)), nil
	}

	if g.store != nil {
		if err := g.store.Save(simstate.NewState(g.quote, g.quoteQty, g.wallet)); err != nil {
			g.logger.Error("failed to save paper wallet", zap.Error(err))
		}
	}

	ref := uuid.New().String()
	g.logger.Info("simulated fill",
		zap.String("order", order.String()),
		zap.String("fill_price", market.String()),
		zap.String("reference", ref),
		zap.String("quote_balance", g.quoteQty.String()))

	return domain.OrderResult{Accepted: true, Reference: ref}, nil
}

func rejected(reason string) domain.OrderResult {
	return domain.OrderResult{Accepted: false, Reason: reason}
}
