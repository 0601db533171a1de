package signal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rotor/internal/services/history"
)

func fill(h *history.PriceHistory, asset string, prices ...float64) {
	for _, p := range prices {
		h.Update(asset, decimal.NewFromFloat(p))
	}
}

func TestNewEstimator(t *testing.T) {
	est, err := NewEstimator("deviation")
	require.NoError(t, err)
	assert.Equal(t, "deviation", est.Name())
	assert.Equal(t, Overextended, est.Orientation())

	est, err = NewEstimator("regression")
	require.NoError(t, err)
	assert.Equal(t, "regression", est.Name())
	assert.Equal(t, Bullish, est.Orientation())

	_, err = NewEstimator("lstm")
	assert.ErrorIs(t, err, ErrUnknownEstimator)
}

func TestDeviationEstimator(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		expected string
	}{
		{name: "above mean", prices: []float64{100, 100, 100, 100, 150}, expected: "0.3636363636363636"},
		{name: "at mean", prices: []float64{5, 5, 5}, expected: "0"},
		{name: "below mean", prices: []float64{10, 10, 10, 2}, expected: "-0.75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := history.New(len(tt.prices))
			fill(h, "x", tt.prices...)

			got, err := DeviationEstimator{}.Estimate(h.Prices("x"))
			require.NoError(t, err)
			f, _ := got.Float64()
			want, _ := decimal.RequireFromString(tt.expected).Float64()
			assert.InDelta(t, want, f, 1e-9)
		})
	}
}

func TestRegressionEstimator(t *testing.T) {
	got, err := RegressionEstimator{}.Estimate([]decimal.Decimal{
		decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(3), decimal.NewFromInt(4),
	})
	require.NoError(t, err)
	// forecast 5 against latest 4
	assert.True(t, got.Equal(decimal.RequireFromString("0.25")), got.String())

	_, err = RegressionEstimator{}.Estimate([]decimal.Decimal{decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestEngine_ScoreRequiresFullHistory(t *testing.T) {
	h := history.New(3)
	fill(h, "btc", 1, 2)
	e := NewEngine(h, RegressionEstimator{})

	_, err := e.Score("btc")
	assert.ErrorIs(t, err, ErrNoSignal)

	_, err = e.Score("eth")
	assert.ErrorIs(t, err, ErrNoSignal)

	fill(h, "btc", 3)
	_, err = e.Score("btc")
	assert.NoError(t, err)
}

func TestEngine_NormalizesOrientation(t *testing.T) {
	h := history.New(4)
	// runs well above its mean
	fill(h, "hot", 10, 10, 10, 20)
	// dips well below its mean
	fill(h, "cold", 10, 10, 10, 5)

	dev := NewEngine(h, DeviationEstimator{})
	hot, err := dev.Score("hot")
	require.NoError(t, err)
	cold, err := dev.Score("cold")
	require.NoError(t, err)
	assert.True(t, hot.IsNegative(), "overextended asset scores low")
	assert.True(t, cold.GreaterThan(hot))

	h2 := history.New(4)
	fill(h2, "up", 1, 2, 3, 4)
	fill(h2, "down", 4, 3, 2, 1)
	reg := NewEngine(h2, RegressionEstimator{})
	up, err := reg.Score("up")
	require.NoError(t, err)
	down, err := reg.Score("down")
	require.NoError(t, err)
	assert.True(t, up.GreaterThan(down))
}

func TestEngine_ScoreAllIsSparse(t *testing.T) {
	h := history.New(2)
	fill(h, "btc", 1, 2)
	fill(h, "eth", 3)

	scores := NewEngine(h, RegressionEstimator{}).ScoreAll([]string{"btc", "eth", "xrp"})
	assert.Len(t, scores, 1)
	assert.Contains(t, scores, "btc")
}

func TestPick(t *testing.T) {
	scores := map[string]decimal.Decimal{
		"btc":  decimal.NewFromFloat(0.1),
		"doge": decimal.NewFromFloat(-0.2),
		"ada":  decimal.NewFromFloat(-0.2),
		"eth":  decimal.NewFromFloat(0.3),
		"sol":  decimal.NewFromFloat(0.3),
	}

	tests := []struct {
		name       string
		candidates []string
		lowest     string
		highest    string
		found      bool
	}{
		{name: "ties go to smallest symbol", candidates: []string{"sol", "doge", "eth", "ada", "btc"}, lowest: "ada", highest: "eth", found: true},
		{name: "single", candidates: []string{"btc"}, lowest: "btc", highest: "btc", found: true},
		{name: "unscored ignored", candidates: []string{"xrp", "btc"}, lowest: "btc", highest: "btc", found: true},
		{name: "none scored", candidates: []string{"xrp"}, found: false},
		{name: "empty", candidates: nil, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, ok := Lowest(scores, tt.candidates)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.lowest, low)

			high, ok := Highest(scores, tt.candidates)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.highest, high)
		})
	}
}

func TestEngine_IdenticalHistoriesScoreIdentically(t *testing.T) {
	window := []float64{101.5, 99.25, 104, 97.75, 110.125}

	for _, name := range []string{EstimatorDeviation, EstimatorRegression} {
		t.Run(name, func(t *testing.T) {
			est, err := NewEstimator(name)
			require.NoError(t, err)

			first, second := history.New(len(window)), history.New(len(window))
			fill(first, "btc", window...)
			// the second history sees older prices that must already be evicted
			fill(second, "btc", 1, 2, 3)
			fill(second, "btc", window...)

			a, err := NewEngine(first, est).Score("btc")
			require.NoError(t, err)
			b, err := NewEngine(second, est).Score("btc")
			require.NoError(t, err)
			assert.True(t, a.Equal(b), "%s != %s", a, b)

			again, err := NewEngine(first, est).Score("btc")
			require.NoError(t, err)
			assert.True(t, a.Equal(again))
		})
	}
}
