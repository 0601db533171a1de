package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEntry_String(t *testing.T) {
	tests := []struct {
		name     string
		entry    Entry
		expected string
	}{
		{
			name:     "executed buy",
			entry:    NewEntry(EntryKindBuy, "btc", OutcomeExecuted).WithQuote("usd").WithTrade(decimal.RequireFromString("0.001"), decimal.NewFromInt(50), decimal.NewFromInt(50000)),
			expected: "Bought 0.001 btc for USD",
		},
		{
			name:     "executed buy in eur",
			entry:    NewEntry(EntryKindBuy, "btc", OutcomeExecuted).WithQuote("eur").WithTrade(decimal.RequireFromString("0.001"), decimal.NewFromInt(45), decimal.NewFromInt(45000)),
			expected: "Bought 0.001 btc for EUR",
		},
		{
			name:     "executed buy without quote",
			entry:    NewEntry(EntryKindBuy, "btc", OutcomeExecuted).WithTrade(decimal.RequireFromString("0.001"), decimal.NewFromInt(50), decimal.NewFromInt(50000)),
			expected: "Bought 0.001 btc",
		},
		{
			name:     "executed sell",
			entry:    NewEntry(EntryKindSell, "eth", OutcomeExecuted).WithQuote("usd").WithTrade(decimal.NewFromInt(2), decimal.NewFromInt(4000), decimal.NewFromInt(2000)),
			expected: "Sold 2 eth for USD",
		},
		{
			name:     "skipped buy",
			entry:    NewEntry(EntryKindBuy, "btc", OutcomeSkipped).WithNote("low trade amount"),
			expected: "Skipped buying btc: low trade amount",
		},
		{
			name:     "skipped cycle",
			entry:    NewEntry(EntryKindCycle, "", OutcomeSkipped).WithNote("balance unavailable"),
			expected: "Skipped cycle: balance unavailable",
		},
		{
			name:     "rejected sell",
			entry:    NewEntry(EntryKindSell, "doge", OutcomeRejected).WithTrade(decimal.NewFromInt(100), decimal.NewFromInt(10), decimal.RequireFromString("0.1")).WithNote("insufficient funds"),
			expected: "Rejected sell 100 doge: insufficient funds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed := tt.entry.Seal()
			assert.Equal(t, tt.expected, sealed.Message)
			assert.NotEmpty(t, sealed.ID)
			assert.False(t, sealed.Timestamp.IsZero())
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "No action", Decision{Rule: RuleNone}.String())

	d := Decision{
		Rule: RuleDiversify,
		Buy:  &Leg{Asset: "btc", Side: SideBuy, QuoteAmount: decimal.NewFromInt(50)},
	}
	assert.Equal(t, "diversify: buy btc for 50.00", d.String())
	assert.False(t, d.NoAction())
}
