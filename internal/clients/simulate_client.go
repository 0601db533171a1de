package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rotor/internal/domain"
)

// binance has no USD spot book, USDT stands in for it
const simulateQuoteAlias = "USDT"

// SimulateClient wraps a real exchange client for price data.
type SimulateClient struct {
	// use Binance public API for real market prices
	binanceClient *binance.Client
}

// NewSimulateClient creates a new simulate client.
func NewSimulateClient() *SimulateClient {
	// create client without API keys for public data only
	client := binance.NewClient("", "")
	return &SimulateClient{
		binanceClient: client,
	}
}

// LastPrice returns the last traded price for the pair.
func (c *SimulateClient) LastPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	symbol := BinanceSymbol(pair)
	prices, err := c.binanceClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "list prices %s", symbol)
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("binance API returned empty prices for %s", symbol)
	}

	return decimal.NewFromString(prices[0].Price)
}

// Symbols returns the lowercase bases quoted against the USD stand-in.
func (c *SimulateClient) Symbols(ctx context.Context) ([]string, error) {
	prices, err := c.binanceClient.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list prices")
	}

	bases := make([]string, 0, len(prices))
	for _, p := range prices {
		if base, ok := strings.CutSuffix(p.Symbol, simulateQuoteAlias); ok && base != "" {
			bases = append(bases, strings.ToLower(base))
		}
	}
	return bases, nil
}

// BinanceSymbol maps btc/usd to BTCUSDT.
func BinanceSymbol(pair domain.Pair) string {
	quote := strings.ToUpper(pair.Quote)
	if quote == "USD" {
		quote = simulateQuoteAlias
	}
	return strings.ToUpper(pair.Base) + quote
}
