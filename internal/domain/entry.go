package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind what a ledger entry is about.
type EntryKind string

const (
	EntryKindBuy   EntryKind = "buy"
	EntryKindSell  EntryKind = "sell"
	EntryKindCycle EntryKind = "cycle"
)

// Outcome result of an action recorded in the ledger.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Entry immutable record of an executed or skipped action.
type Entry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"ts"`
	Kind      EntryKind       `json:"kind"`
	Asset     string          `json:"asset,omitempty"`
	Quote     string          `json:"quote,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Notional  decimal.Decimal `json:"notional"`
	Price     decimal.Decimal `json:"price"`
	Outcome   Outcome         `json:"outcome"`
	Reference string          `json:"reference,omitempty"`
	Note      string          `json:"note,omitempty"`
	Message   string          `json:"message"`
}

// NewEntry creates an entry stamped with a fresh id and the current time.
func NewEntry(kind EntryKind, asset string, outcome Outcome) Entry {
	return Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Asset:     asset,
		Outcome:   outcome,
	}
}

// WithTrade sets amount, notional and price.
func (e Entry) WithTrade(amount, notional, price decimal.Decimal) Entry {
	e.Amount = amount
	e.Notional = notional
	e.Price = price
	return e
}

// WithQuote sets the quote currency the trade was settled in.
func (e Entry) WithQuote(quote string) Entry {
	e.Quote = quote
	return e
}

// WithNote sets a free-form note, e.g. a skip or rejection reason.
func (e Entry) WithNote(note string) Entry {
	e.Note = note
	return e
}

// WithReference sets the exchange order reference.
func (e Entry) WithReference(ref string) Entry {
	e.Reference = ref
	return e
}

// Seal fills Message from the other fields. Call it last.
func (e Entry) Seal() Entry {
	e.Message = e.String()
	return e
}

// String returns the human-readable line shown on the dashboard.
func (e Entry) String() string {
	switch e.Outcome {
	case OutcomeExecuted:
		verb := "Sold"
		if e.Kind == EntryKindBuy {
			verb = "Bought"
		}
		if e.Quote == "" {
			return fmt.Sprintf("%s %s %s", verb, e.Amount.String(), e.Asset)
		}
		return fmt.Sprintf("%s %s %s for %s", verb, e.Amount.String(), e.Asset, strings.ToUpper(e.Quote))
	case OutcomeSkipped:
		if e.Kind == EntryKindCycle {
			return fmt.Sprintf("Skipped cycle: %s", e.Note)
		}
		return fmt.Sprintf("Skipped %s %s: %s", gerund(e.Kind), e.Asset, e.Note)
	case OutcomeRejected:
		return fmt.Sprintf("Rejected %s %s %s: %s", e.Kind, e.Amount.String(), e.Asset, e.Note)
	case OutcomeFailed:
		return fmt.Sprintf("Failed %s %s %s: %s", e.Kind, e.Amount.String(), e.Asset, e.Note)
	default:
		return fmt.Sprintf("%s %s %s", e.Kind, e.Asset, e.Outcome)
	}
}

func gerund(kind EntryKind) string {
	switch kind {
	case EntryKindBuy:
		return "buying"
	case EntryKindSell:
		return "selling"
	default:
		return string(kind)
	}
}
