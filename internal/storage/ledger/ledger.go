// Package ledger keeps the append-only record of every trade outcome.
package ledger

import (
	"sync"

	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/events"
	"github.com/vadiminshakov/rotor/internal/metrics"
)

// Journal mirrors appended entries to durable storage.
type Journal interface {
	Write(entry domain.Entry) error
	Close() error
}

// Ledger is written by the trading loop and read concurrently by the status server.
// Readers always observe a prefix of the final sequence.
type Ledger struct {
	mu      sync.RWMutex
	entries []domain.Entry
	journal Journal
	logger  *zap.Logger
	appends *events.EntryBroadcaster
}

// New creates an empty ledger. journal may be nil.
func New(journal Journal, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{journal: journal, logger: logger, appends: events.NewEntryBroadcaster(64)}
}

// Restore loads previously journaled entries. It must be called before the first Append.
func (l *Ledger) Restore(entries []domain.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entries...)
}

// Append records entry and returns the new ledger length.
// A journal failure is logged; the in-memory record is kept regardless.
func (l *Ledger) Append(entry domain.Entry) int {
	if entry.Message == "" {
		entry = entry.Seal()
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	n := len(l.entries)
	l.mu.Unlock()

	metrics.LedgerEntriesTotal.WithLabelValues(string(entry.Outcome)).Inc()
	l.logger.Info(entry.Message,
		zap.String("kind", string(entry.Kind)),
		zap.String("asset", entry.Asset),
		zap.String("outcome", string(entry.Outcome)),
	)

	if l.journal != nil {
		if err := l.journal.Write(entry); err != nil {
			l.logger.Error("failed to journal ledger entry", zap.String("id", entry.ID), zap.Error(err))
		}
	}

	l.appends.Publish(entry)

	return n
}

// Entries returns a copy of all entries, oldest first.
func (l *Ledger) Entries() []domain.Entry {
	return l.EntriesAfter(0)
}

// EntriesAfter returns a copy of entries at positions >= offset.
func (l *Ledger) EntriesAfter(offset int) []domain.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(l.entries) {
		return []domain.Entry{}
	}
	out := make([]domain.Entry, len(l.entries)-offset)
	copy(out, l.entries[offset:])
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

// Subscribe returns a channel notified after every Append.
// Notifications may be dropped for slow readers; use EntriesAfter to catch up.
func (l *Ledger) Subscribe() <-chan domain.Entry {
	return l.appends.Subscribe()
}

// Unsubscribe stops notifications for ch.
func (l *Ledger) Unsubscribe(ch <-chan domain.Entry) {
	l.appends.Unsubscribe(ch)
}

// Close closes the journal, if any.
func (l *Ledger) Close() error {
	if l.journal == nil {
		return nil
	}
	return l.journal.Close()
}
