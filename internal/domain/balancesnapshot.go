package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSnapshot is an immutable view of available account funds.
// A new snapshot is produced on every fetch; nothing mutates an existing one.
type BalanceSnapshot struct {
	fetchedAt time.Time
	quote     string
	quoteQty  decimal.Decimal
	assets    map[string]decimal.Decimal
}

// NewBalanceSnapshot copies assets so later changes to the caller's map are not observed.
func NewBalanceSnapshot(fetchedAt time.Time, quote string, quoteQty decimal.Decimal, assets map[string]decimal.Decimal) BalanceSnapshot {
	cp := make(map[string]decimal.Decimal, len(assets))
	for asset, qty := range assets {
		if asset == quote {
			continue
		}
		cp[asset] = qty
	}
	return BalanceSnapshot{
		fetchedAt: fetchedAt,
		quote:     quote,
		quoteQty:  quoteQty,
		assets:    cp,
	}
}

// FetchedAt returns when the snapshot was taken.
func (b BalanceSnapshot) FetchedAt() time.Time { return b.fetchedAt }

// QuoteCurrency returns the quote currency symbol.
func (b BalanceSnapshot) QuoteCurrency() string { return b.quote }

// Quote returns the available quote-currency quantity.
func (b BalanceSnapshot) Quote() decimal.Decimal { return b.quoteQty }

// Available returns the available quantity of asset, zero if absent.
func (b BalanceSnapshot) Available(asset string) decimal.Decimal {
	return b.assets[asset]
}

// Held reports whether the asset has a positive available balance.
func (b BalanceSnapshot) Held(asset string) bool {
	return b.assets[asset].IsPositive()
}

// Assets returns a copy of the per-asset quantities.
func (b BalanceSnapshot) Assets() map[string]decimal.Decimal {
	cp := make(map[string]decimal.Decimal, len(b.assets))
	for asset, qty := range b.assets {
		cp[asset] = qty
	}
	return cp
}

// HeldAssets returns sorted symbols with a positive balance.
func (b BalanceSnapshot) HeldAssets() []string {
	held := make([]string, 0, len(b.assets))
	for asset, qty := range b.assets {
		if qty.IsPositive() {
			held = append(held, asset)
		}
	}
	sort.Strings(held)
	return held
}

type balanceSnapshotJSON struct {
	FetchedAt time.Time                  `json:"ts"`
	Quote     string                     `json:"quote"`
	QuoteQty  decimal.Decimal            `json:"quote_available"`
	Assets    map[string]decimal.Decimal `json:"assets"`
}

// MarshalJSON implements json.Marshaler.
func (b BalanceSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(balanceSnapshotJSON{
		FetchedAt: b.fetchedAt,
		Quote:     b.quote,
		QuoteQty:  b.quoteQty,
		Assets:    b.Assets(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BalanceSnapshot) UnmarshalJSON(data []byte) error {
	var raw balanceSnapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = NewBalanceSnapshot(raw.FetchedAt, raw.Quote, raw.QuoteQty, raw.Assets)
	return nil
}
