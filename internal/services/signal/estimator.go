// Package signal turns price windows into comparable per-asset scores.
package signal

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rotor/pkg/indicators"
)

// Orientation tells how a raw estimator score relates to attractiveness.
type Orientation int

const (
	// Bullish raw scores grow with expected upside.
	Bullish Orientation = iota
	// Overextended raw scores grow with how far price ran above trend.
	Overextended
)

const (
	EstimatorDeviation  = "deviation"
	EstimatorRegression = "regression"
)

var ErrUnknownEstimator = errors.New("unknown estimator")

// Estimator produces a raw score from a full price window, oldest first.
type Estimator interface {
	Name() string
	Estimate(prices []decimal.Decimal) (decimal.Decimal, error)
	Orientation() Orientation
}

// NewEstimator builds an estimator by config name.
func NewEstimator(name string) (Estimator, error) {
	switch name {
	case EstimatorDeviation:
		return DeviationEstimator{}, nil
	case EstimatorRegression:
		return RegressionEstimator{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownEstimator, "%q", name)
	}
}

// DeviationEstimator scores (latest - mean) / mean.
type DeviationEstimator struct{}

func (DeviationEstimator) Name() string { return EstimatorDeviation }

func (DeviationEstimator) Orientation() Orientation { return Overextended }

func (DeviationEstimator) Estimate(prices []decimal.Decimal) (decimal.Decimal, error) {
	if len(prices) == 0 {
		return decimal.Zero, errors.New("empty price window")
	}
	mean, err := indicators.Mean(prices)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "mean")
	}
	if !mean.IsPositive() {
		return decimal.Zero, errors.Errorf("non-positive mean %s", mean)
	}
	latest := prices[len(prices)-1]
	return latest.Sub(mean).Div(mean), nil
}

// RegressionEstimator scores (forecast - latest) / latest using a one-step linear forecast.
type RegressionEstimator struct{}

func (RegressionEstimator) Name() string { return EstimatorRegression }

func (RegressionEstimator) Orientation() Orientation { return Bullish }

func (RegressionEstimator) Estimate(prices []decimal.Decimal) (decimal.Decimal, error) {
	if len(prices) < 2 {
		return decimal.Zero, errors.Errorf("need at least 2 prices, got %d", len(prices))
	}
	latest := prices[len(prices)-1]
	if !latest.IsPositive() {
		return decimal.Zero, errors.Errorf("non-positive latest price %s", latest)
	}
	forecast, err := indicators.LinearForecast(prices)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "forecast")
	}
	return forecast.Sub(latest).Div(latest), nil
}
