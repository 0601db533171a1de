// Command rotor runs an unattended portfolio rebalancer on Bitstamp,
// or against a paper wallet fed by live public prices.
//
// Usage:
//
//	rotor -config config.yaml
//	rotor -setup            (interactive wizard, writes config.gen.yaml)
//	rotor -platform simulate -assets btc,eth,xrp
//
// Required environment variables for the bitstamp platform (may be put in key.env):
//
//	BITSTAMP_API_KEY, BITSTAMP_API_SECRET, BITSTAMP_CUSTOMER_ID
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/rotor/config"
	"github.com/vadiminshakov/rotor/dashboard"
	"github.com/vadiminshakov/rotor/internal"
	"github.com/vadiminshakov/rotor/internal/clients"
	"github.com/vadiminshakov/rotor/internal/setup"
)

const credentialsFile = "key.env"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	runSetup := flag.Bool("setup", false, "run the interactive configuration wizard")
	conf, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	if *runSetup {
		path, err := setup.RunTUI()
		if err != nil {
			logger.Fatal("setup failed", zap.Error(err))
		}
		if conf, err = config.Load(path); err != nil {
			logger.Fatal("failed to load generated configuration", zap.Error(err))
		}
	}

	if err := godotenv.Load(credentialsFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to read credentials file", zap.String("file", credentialsFile), zap.Error(err))
	}

	client, err := newClient(conf)
	if err != nil {
		logger.Fatal("failed to create exchange client", zap.String("platform", conf.Platform), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := internal.NewTradingBot(ctx, conf, client, logger.With(zap.String("platform", conf.Platform)))
	if err != nil {
		logger.Fatal("failed to create trading bot", zap.Error(err))
	}
	defer func() {
		if err := bot.Close(); err != nil {
			logger.Error("failed to close trading bot", zap.Error(err))
		}
	}()

	server := dashboard.NewServer(conf.StatusAddr, bot, logger.Named("status"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		if len(conf.TLSDomains) > 0 {
			return server.StartWithAutoTLS(gctx, conf.TLSDomains, conf.TLSCacheDir)
		}
		return server.Start(gctx)
	})

	logger.Info("started",
		zap.Strings("assets", bot.Assets()),
		zap.Duration("interval", conf.TradeInterval),
		zap.String("status_addr", conf.StatusAddr))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stopped with error", zap.Error(err))
		return
	}
	logger.Info("stopped")
}

func newClient(conf config.Config) (any, error) {
	switch conf.Platform {
	case config.PlatformBitstamp:
		signer, err := clients.NewSigner(clients.Credentials{
			APIKey:     os.Getenv("BITSTAMP_API_KEY"),
			APISecret:  os.Getenv("BITSTAMP_API_SECRET"),
			CustomerID: os.Getenv("BITSTAMP_CUSTOMER_ID"),
		})
		if err != nil {
			return nil, err
		}
		return clients.NewBitstampClient(clients.DefaultBitstampURL, signer, conf.HTTPTimeout, conf.RequestsPerSecond), nil
	case config.PlatformSimulate:
		return clients.NewSimulateClient(), nil
	default:
		return nil, errors.Errorf("unsupported platform %q", conf.Platform)
	}
}
