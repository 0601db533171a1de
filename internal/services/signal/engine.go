package signal

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrNoSignal means the asset cannot be scored this cycle.
var ErrNoSignal = errors.New("no signal")

// History is the read side of the per-asset price window.
type History interface {
	Ready(asset string) bool
	Prices(asset string) []decimal.Decimal
}

// Engine scores assets so that a higher score always means more attractive to hold.
type Engine struct {
	history   History
	estimator Estimator
}

func NewEngine(history History, estimator Estimator) *Engine {
	return &Engine{history: history, estimator: estimator}
}

// Estimator returns the configured estimator.
func (e *Engine) Estimator() Estimator {
	return e.estimator
}

// Score returns the normalized score for asset or ErrNoSignal.
func (e *Engine) Score(asset string) (decimal.Decimal, error) {
	if !e.history.Ready(asset) {
		return decimal.Zero, errors.Wrapf(ErrNoSignal, "%s: history not full", asset)
	}

	raw, err := e.estimator.Estimate(e.history.Prices(asset))
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrNoSignal, "%s: %v", asset, err)
	}

	if e.estimator.Orientation() == Overextended {
		return raw.Neg(), nil
	}
	return raw, nil
}

// ScoreAll scores every asset it can; unscored assets are absent from the result.
func (e *Engine) ScoreAll(assets []string) map[string]decimal.Decimal {
	scores := make(map[string]decimal.Decimal, len(assets))
	for _, asset := range assets {
		score, err := e.Score(asset)
		if err != nil {
			continue
		}
		scores[asset] = score
	}
	return scores
}

// Lowest returns the lowest-scored asset among candidates.
// Ties resolve to the lexicographically smallest symbol.
func Lowest(scores map[string]decimal.Decimal, candidates []string) (string, bool) {
	return pick(scores, candidates, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
}

// Highest returns the highest-scored asset among candidates.
// Ties resolve to the lexicographically smallest symbol.
func Highest(scores map[string]decimal.Decimal, candidates []string) (string, bool) {
	return pick(scores, candidates, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
}

func pick(scores map[string]decimal.Decimal, candidates []string, better func(a, b decimal.Decimal) bool) (string, bool) {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	var (
		best      string
		bestScore decimal.Decimal
		found     bool
	)
	for _, asset := range sorted {
		score, ok := scores[asset]
		if !ok {
			continue
		}
		if !found || better(score, bestScore) {
			best, bestScore, found = asset, score, true
		}
	}
	return best, found
}
