package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/config"
	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/services/execution"
	"github.com/vadiminshakov/rotor/internal/services/gateway"
	"github.com/vadiminshakov/rotor/internal/services/history"
	"github.com/vadiminshakov/rotor/internal/services/policy"
	"github.com/vadiminshakov/rotor/internal/services/signal"
	"github.com/vadiminshakov/rotor/internal/storage/ledger"
	"github.com/vadiminshakov/rotor/pkg/retrier"
)

const (
	discoveryRetries  = 3
	discoveryInterval = 2 * time.Second
)

// NewTradingBot creates a trading bot for the platform behind client.
func NewTradingBot(ctx context.Context, conf config.Config, client any, logger *zap.Logger) (*TradingBot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := newServiceProvider(client, conf, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create service provider")
	}
	gw, err := provider.Gateway()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gateway")
	}

	r := retrier.New(
		retrier.WithMaxRetries(discoveryRetries),
		retrier.WithInitialInterval(discoveryInterval),
		retrier.WithRetryIf(func(err error) bool { return errors.Is(err, gateway.ErrUnavailable) }),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Warn("pair discovery failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
	var pairs map[string]domain.PairInfo
	conf.Assets, pairs, err = discoverAssets(ctx, r, gw, conf.Assets, conf.Quote, logger)
	if err != nil {
		return nil, err
	}

	return newTradingBot(gw, conf, pairs, logger)
}

// discoverAssets drops tracked assets the exchange does not trade against quote.
// If the pair list cannot be fetched, the configured set is kept and no pair info is returned.
func discoverAssets(ctx context.Context, r *retrier.Retrier, gw gateway.Gateway, assets []string, quote string, logger *zap.Logger) ([]string, map[string]domain.PairInfo, error) {
	pairs, err := retrier.DoWithData(r, ctx, gw.ListTradablePairs)
	if err != nil {
		logger.Warn("pair discovery failed, keeping configured assets", zap.Error(err))
		return assets, nil, nil
	}

	kept := make([]string, 0, len(assets))
	for _, asset := range assets {
		symbol := domain.NewPair(asset, quote).Symbol()
		if _, ok := pairs[symbol]; !ok {
			logger.Warn("asset not tradable, dropping", zap.String("asset", asset), zap.String("symbol", symbol))
			continue
		}
		kept = append(kept, asset)
	}
	if len(kept) == 0 {
		return nil, nil, errors.Errorf("none of the configured assets trade against %s", quote)
	}
	return kept, pairs, nil
}

func newTradingBot(gw gateway.Gateway, conf config.Config, pairs map[string]domain.PairInfo, logger *zap.Logger) (*TradingBot, error) {
	estimator, err := signal.NewEstimator(conf.Estimator)
	if err != nil {
		return nil, err
	}

	h := history.New(conf.LookbackPeriod)

	p, err := policy.New(policy.Config{
		MinHoldings:   conf.MinHoldings,
		MaxHoldings:   conf.MaxHoldings,
		TradeFraction: conf.TradeFraction,
		MinTradeUSD:   conf.MinTradeUSD,
	})
	if err != nil {
		return nil, err
	}

	l, err := ledger.Open(conf.LedgerWALDir, logger.Named("ledger"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ledger")
	}

	coordinator, err := execution.NewCoordinator(gw, l, execution.Config{
		Quote:           conf.Quote,
		OrderType:       conf.OrderType,
		SlippagePercent: conf.SlippagePercent,
		MinTradeUSD:     conf.MinTradeUSD,
		Pairs:           pairs,
	}, logger.Named("execution"))
	if err != nil {
		_ = l.Close()
		return nil, errors.Wrap(err, "failed to create execution coordinator")
	}

	return &TradingBot{
		gw:           gw,
		history:      h,
		engine:       signal.NewEngine(h, estimator),
		policy:       p,
		coordinator:  coordinator,
		ledger:       l,
		assets:       append([]string(nil), conf.Assets...),
		quote:        conf.Quote,
		interval:     conf.TradeInterval,
		logger:       logger,
		latestAction: noActionYet,
	}, nil
}
