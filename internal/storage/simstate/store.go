// Package simstate persists the paper-trading wallet so restarts keep balances.
package simstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Store keeps one wallet file per quote currency.
type Store struct {
	path string
}

// NewStore creates dir if needed and returns a store for the quote currency's wallet.
func NewStore(dir, quote string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("simulate state dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulate state dir")
	}

	name := sanitizeName(quote)
	if name == "" {
		return nil, errors.Errorf("invalid quote currency %q", quote)
	}

	return &Store{path: filepath.Join(dir, fmt.Sprintf("wallet_%s.json", name))}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// State is the stored wallet. Amounts are decimal strings to keep precision.
type State struct {
	UpdatedAt    time.Time         `json:"updated_at"`
	Quote        string            `json:"quote"`
	QuoteBalance string            `json:"quote_balance"`
	Wallet       map[string]string `json:"wallet"`
}

// NewState converts wallet balances into their stored form. Zero balances are omitted.
func NewState(quote string, quoteBalance decimal.Decimal, wallet map[string]decimal.Decimal) State {
	stored := make(map[string]string, len(wallet))
	for asset, qty := range wallet {
		if qty.IsZero() {
			continue
		}
		stored[asset] = qty.String()
	}
	return State{
		UpdatedAt:    time.Now().UTC(),
		Quote:        quote,
		QuoteBalance: quoteBalance.String(),
		Wallet:       stored,
	}
}

// Balances decodes the stored amounts.
func (st State) Balances() (decimal.Decimal, map[string]decimal.Decimal, error) {
	quoteQty, err := decimal.NewFromString(st.QuoteBalance)
	if err != nil {
		return decimal.Decimal{}, nil, errors.Wrap(err, "decode quote balance")
	}

	wallet := make(map[string]decimal.Decimal, len(st.Wallet))
	for asset, raw := range st.Wallet {
		qty, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Decimal{}, nil, errors.Wrapf(err, "decode %s balance", asset)
		}
		wallet[asset] = qty
	}
	return quoteQty, wallet, nil
}

// Load reads the wallet from disk. A missing or empty file yields nil state.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read simulate state")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode simulate state")
	}
	return &state, nil
}

// Save writes the wallet atomically via a temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode simulate state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write simulate state temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist simulate state")
	}
	return nil
}

func sanitizeName(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))

	var b strings.Builder
	prevUnderscore := false
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
