// Package indicators provides trend indicators over price series.
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// CalculateSMA calculates the Simple Moving Average for the given period.
// The result holds len(values)-period+1 points.
func CalculateSMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period < 1 {
		return nil, fmt.Errorf("invalid SMA period %d", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(decimalsToFloat64(values))
	outputChan := sma.Compute(inputChan)
	smaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(smaFloat), nil
}

// Mean returns the arithmetic mean of values.
func Mean(values []decimal.Decimal) (decimal.Decimal, error) {
	sma, err := CalculateSMA(values, len(values))
	if err != nil {
		return decimal.Zero, err
	}
	return sma[len(sma)-1], nil
}

// LinearForecast fits an ordinary least squares line over (index, value)
// and returns its value at the next index.
func LinearForecast(values []decimal.Decimal) (decimal.Decimal, error) {
	n := len(values)
	if n < 2 {
		return decimal.Zero, fmt.Errorf("not enough data points for forecast: need 2, got %d", n)
	}

	count := decimal.NewFromInt(int64(n))
	var sumX, sumY, sumXY, sumXX decimal.Decimal
	for i, v := range values {
		x := decimal.NewFromInt(int64(i))
		sumX = sumX.Add(x)
		sumY = sumY.Add(v)
		sumXY = sumXY.Add(x.Mul(v))
		sumXX = sumXX.Add(x.Mul(x))
	}

	// denominator is n^2(n^2-1)/12 > 0 for n >= 2
	denom := count.Mul(sumXX).Sub(sumX.Mul(sumX))
	slope := count.Mul(sumXY).Sub(sumX.Mul(sumY)).Div(denom)
	intercept := sumY.Sub(slope.Mul(sumX)).Div(count)

	return intercept.Add(slope.Mul(count)), nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
