// Package gateway exposes the exchange operations the rebalancer needs:
// balances, last prices, tradable pairs and order submission.
//
// Fetch failures of any kind (transport, non-2xx, malformed body) are reported
// as ErrUnavailable. Nothing in this package retries.
package gateway

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rotor/internal/domain"
)

// ErrUnavailable marks a transient failure; the caller skips the operation for this cycle.
var ErrUnavailable = errors.New("exchange data unavailable")

// Gateway is the market access used by the trading loop and the status interface.
type Gateway interface {
	FetchBalance(ctx context.Context) (domain.BalanceSnapshot, error)
	FetchPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	ListTradablePairs(ctx context.Context) (map[string]domain.PairInfo, error)
	// SubmitOrder returns a rejected result for exchange refusals and
	// an ErrUnavailable error when the outcome could not be obtained.
	SubmitOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error)
}

func unavailable(cause error, format string, args ...any) error {
	if cause != nil {
		return errors.Wrapf(ErrUnavailable, format+": %v", append(args, cause)...)
	}
	return errors.Wrapf(ErrUnavailable, format, args...)
}
