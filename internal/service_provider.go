package internal

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/config"
	"github.com/vadiminshakov/rotor/internal/clients"
	"github.com/vadiminshakov/rotor/internal/services/gateway"
	"github.com/vadiminshakov/rotor/internal/storage/simstate"
)

// serviceProvider creates platform-specific market access.
type serviceProvider interface {
	Gateway() (gateway.Gateway, error)
}

// newServiceProvider dispatches on the client type.
func newServiceProvider(client any, conf config.Config, logger *zap.Logger) (serviceProvider, error) {
	switch c := client.(type) {
	case *clients.BitstampClient:
		return &bitstampProvider{client: c, quote: conf.Quote, logger: logger}, nil
	case *clients.SimulateClient:
		return &simulateProvider{client: c, quote: conf.Quote, quoteBalance: conf.SimulateQuoteBalance, stateDir: conf.SimulateStateDir, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

type bitstampProvider struct {
	client *clients.BitstampClient
	quote  string
	logger *zap.Logger
}

func (p *bitstampProvider) Gateway() (gateway.Gateway, error) {
	return gateway.NewBitstampGateway(p.client, p.quote, p.logger.Named("bitstamp")), nil
}

type simulateProvider struct {
	client       *clients.SimulateClient
	quote        string
	quoteBalance decimal.Decimal
	stateDir     string
	logger       *zap.Logger
}

// Gateway keeps the paper wallet in memory unless a state dir is configured.
func (p *simulateProvider) Gateway() (gateway.Gateway, error) {
	gw := gateway.NewSimulateGateway(p.client, p.quote, p.quoteBalance, p.logger.Named("simulate"))
	if p.stateDir == "" {
		return gw, nil
	}

	store, err := simstate.NewStore(p.stateDir, p.quote)
	if err != nil {
		return nil, err
	}
	if err := gw.Persist(store); err != nil {
		return nil, err
	}
	return gw, nil
}
