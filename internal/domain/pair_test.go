package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairInfo_MinimumNotional(t *testing.T) {
	tests := map[string]string{
		"20.0 USD": "20",
		"10 EUR":   "10",
		"":         "0",
		"n/a":      "0",
		"-5 USD":   "0",
	}
	for raw, want := range tests {
		got := PairInfo{MinimumOrder: raw}.MinimumNotional()
		assert.Equal(t, want, got.String(), raw)
	}
}

func TestPair_Symbol(t *testing.T) {
	p := NewPair("BTC", "Usd")
	assert.Equal(t, "btcusd", p.Symbol())
	assert.Equal(t, "btc_usd", p.String())
}
