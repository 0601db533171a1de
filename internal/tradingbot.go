package internal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/metrics"
	"github.com/vadiminshakov/rotor/internal/services/execution"
	"github.com/vadiminshakov/rotor/internal/services/gateway"
	"github.com/vadiminshakov/rotor/internal/services/history"
	"github.com/vadiminshakov/rotor/internal/services/policy"
	"github.com/vadiminshakov/rotor/internal/services/signal"
	"github.com/vadiminshakov/rotor/internal/storage/ledger"
)

const noActionYet = "No action yet"

// State is what the status interface shows.
type State struct {
	LatestAction string                  `json:"latest_action"`
	Balance      *domain.BalanceSnapshot `json:"balance"`
	Transactions []domain.Entry          `json:"transactions"`
}

// TradingBot runs the rebalancing loop over a fixed set of tracked assets.
type TradingBot struct {
	gw          gateway.Gateway
	history     *history.PriceHistory
	engine      *signal.Engine
	policy      *policy.Policy
	coordinator *execution.Coordinator
	ledger      *ledger.Ledger
	assets      []string
	quote       string
	interval    time.Duration
	logger      *zap.Logger

	mu           sync.RWMutex
	latestAction string
}

// Close closes the trading bot
func (b *TradingBot) Close() error {
	return b.ledger.Close()
}

// Assets returns the tracked assets.
func (b *TradingBot) Assets() []string {
	return append([]string(nil), b.assets...)
}

// Run sleeps one interval, runs a cycle, and repeats until ctx is done.
// The next sleep starts only after the previous cycle has finished.
func (b *TradingBot) Run(ctx context.Context) error {
	timer := time.NewTimer(b.interval)
	defer timer.Stop()

	b.logger.Info("Starting trading loop",
		zap.Strings("assets", b.assets),
		zap.Duration("interval", b.interval),
		zap.String("estimator", b.engine.Estimator().Name()))

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context done, stopping trading loop")
			return ctx.Err()
		case <-timer.C:
			b.RunCycle(ctx)
			timer.Reset(b.interval)
		}
	}
}

// RunCycle performs one full decision cycle. Failures never escape it;
// they end up in the ledger or the log.
func (b *TradingBot) RunCycle(ctx context.Context) {
	metrics.CyclesTotal.Inc()
	b.logger.Debug("Trading cycle started")

	prices := make(map[string]decimal.Decimal, len(b.assets))
	fresh := make([]string, 0, len(b.assets))
	for _, asset := range b.assets {
		price, err := b.gw.FetchPrice(ctx, domain.NewPair(asset, b.quote))
		if err != nil {
			metrics.FetchFailuresTotal.WithLabelValues("price").Inc()
			b.logger.Warn("price unavailable, asset excluded this cycle", zap.String("asset", asset), zap.Error(err))
			continue
		}
		b.history.Update(asset, price)
		prices[asset] = price
		fresh = append(fresh, asset)
		b.logger.Debug("price updated",
			zap.String("asset", asset),
			zap.String("price", price.String()),
			zap.Int("history", b.history.Len(asset)))
	}

	balance, err := b.gw.FetchBalance(ctx)
	if err != nil {
		metrics.FetchFailuresTotal.WithLabelValues("balance").Inc()
		b.logger.Warn("balance unavailable, skipping cycle", zap.Error(err))
		entry := domain.NewEntry(domain.EntryKindCycle, "", domain.OutcomeSkipped).
			WithNote("balance unavailable").
			Seal()
		b.ledger.Append(entry)
		b.setLatestAction(entry.Message)
		return
	}

	held := 0
	for _, asset := range b.assets {
		if balance.Held(asset) {
			held++
		}
	}
	metrics.ActiveHoldings.Set(float64(held))

	scores := b.engine.ScoreAll(fresh)
	if len(scores) > 0 {
		fields := make([]zap.Field, 0, len(scores))
		keys := make([]string, 0, len(scores))
		for asset := range scores {
			keys = append(keys, asset)
		}
		sort.Strings(keys)
		for _, asset := range keys {
			fields = append(fields, zap.String(asset, scores[asset].StringFixed(6)))
		}
		b.logger.Debug("scores", fields...)
	}

	decision := b.policy.Decide(policy.Input{
		Balance: balance,
		Tracked: b.assets,
		Scores:  scores,
		Prices:  prices,
	})
	b.logger.Info("decision",
		zap.String("rule", string(decision.Rule)),
		zap.String("decision", decision.String()),
		zap.Int("holdings", held),
		zap.Int("scored", len(scores)))

	b.coordinator.Execute(ctx, decision)
	b.setLatestAction(decision.String())
}

// LatestAction returns the label of the most recent cycle.
func (b *TradingBot) LatestAction() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.latestAction
}

func (b *TradingBot) setLatestAction(label string) {
	b.mu.Lock()
	b.latestAction = label
	b.mu.Unlock()
}

// Transactions returns the ledger contents.
func (b *TradingBot) Transactions() []domain.Entry {
	return b.ledger.Entries()
}

// TransactionsAfter returns ledger entries at positions >= offset.
func (b *TradingBot) TransactionsAfter(offset int) []domain.Entry {
	return b.ledger.EntriesAfter(offset)
}

// SubscribeTransactions notifies the caller about new ledger entries.
func (b *TradingBot) SubscribeTransactions() <-chan domain.Entry {
	return b.ledger.Subscribe()
}

// UnsubscribeTransactions releases a channel from SubscribeTransactions.
func (b *TradingBot) UnsubscribeTransactions(ch <-chan domain.Entry) {
	b.ledger.Unsubscribe(ch)
}

// State fetches a fresh balance; an unreachable exchange yields a nil balance, not an error.
func (b *TradingBot) State(ctx context.Context) State {
	state := State{
		LatestAction: b.LatestAction(),
		Transactions: b.ledger.Entries(),
	}

	balance, err := b.gw.FetchBalance(ctx)
	if err != nil {
		metrics.FetchFailuresTotal.WithLabelValues("balance").Inc()
		b.logger.Warn("status balance unavailable", zap.Error(err))
		return state
	}
	state.Balance = &balance
	return state
}
